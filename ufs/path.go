package ufs

import (
	"path/filepath"
	"strings"
)

// join resolves a walk from base through components, enforcing
// confinement to the Backend's root the way fs.c's fixed-buffer
// strcat never could: each step is resolved and checked against the
// root individually, so a partial prefix that would escape it is
// never returned, even transiently.
func (b *Backend) join(base string, components ...string) (string, error) {
	p := base
	for _, c := range components {
		if c == "" || strings.ContainsRune(c, '/') {
			return "", ErrInvalidName
		}
		if c == "." {
			continue
		}
		if c == ".." {
			if p == b.cfg.Root {
				return "", ErrPermission
			}
			p = filepath.Dir(p)
			continue
		}
		p = filepath.Join(p, c)
		if err := b.confine(p); err != nil {
			return "", err
		}
	}
	if err := b.confine(p); err != nil {
		return "", err
	}
	return p, nil
}

// confine reports an error if p is not the root or a descendant of it.
func (b *Backend) confine(p string) error {
	if p == b.cfg.Root {
		return nil
	}
	if strings.HasPrefix(p, b.cfg.Root+string(filepath.Separator)) {
		return nil
	}
	return ErrPermission
}
