package styxfile

import (
	"os"
	"testing"

	"aqwari.net/net/ufs9p/styxproto"
)

func TestPerm(t *testing.T) {
	var mode os.FileMode = os.ModeDir |
		os.ModeExclusive |
		os.ModeTemporary |
		0750
	perm := Mode9P(mode)
	if perm&styxproto.DMDIR == 0 {
		t.Error("ModeDir")
	}
	if perm&styxproto.DMEXCL == 0 {
		t.Error("ModeExclusive")
	}
	if perm&styxproto.DMTMP == 0 {
		t.Error("ModeTemporary")
	}
	if perm&0777 != 0750 {
		t.Error("ModePerm")
	}
}
