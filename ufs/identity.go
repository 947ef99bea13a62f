package ufs

import (
	"os/user"
	"strconv"

	"aqwari.net/net/ufs9p/internal/threadsafe"
)

// identity is the session owner resolved at Tattach time: the uid/gid
// a fid's operations are checked against, and the supplementary group
// set consulted by the permission evaluator (C2).
type identity struct {
	uid, gid uint32
	uname    string
	groups   map[uint32]bool
}

// identityCache wraps the host user database the way fs.c's
// setpassent(1) keeps the passwd database open across lookups: a
// Backend constructs one cache and every Session shares it, so a uid
// or uname is only ever resolved against the host once.
type identityCache struct {
	byUname *threadsafe.Map // uname -> identity
	byUid   *threadsafe.Map // uid -> identity
	names   *threadsafe.Map // uid -> name (for C5's uid_to_name)
}

func newIdentityCache() *identityCache {
	return &identityCache{
		byUname: threadsafe.NewMap(),
		byUid:   threadsafe.NewMap(),
		names:   threadsafe.NewMap(),
	}
}

// resolveUname resolves a 9P2000 uname (a user name with no numeric
// id) into an identity.
func (c *identityCache) resolveUname(uname string) (identity, error) {
	var id identity
	if c.byUname.Fetch(uname, &id) {
		return id, nil
	}
	u, err := user.Lookup(uname)
	if err != nil {
		return identity{}, ErrPermission
	}
	id, err = c.identityFromUser(u)
	if err != nil {
		return identity{}, ErrPermission
	}
	c.byUname.Put(uname, id)
	return id, nil
}

// resolveNuname resolves a 9P2000.u numeric uid into an identity,
// failing with ErrPermission if the host user database has no entry
// for it — fs_attach's literal EPERM-on-failed-getpwuid behavior.
func (c *identityCache) resolveNuname(nuname uint32) (identity, error) {
	var id identity
	if c.byUid.Fetch(nuname, &id) {
		return id, nil
	}
	u, err := user.LookupId(strconv.FormatUint(uint64(nuname), 10))
	if err != nil {
		return identity{}, ErrPermission
	}
	id, err = c.identityFromUser(u)
	if err != nil {
		return identity{}, ErrPermission
	}
	c.byUid.Put(nuname, id)
	return id, nil
}

func (c *identityCache) identityFromUser(u *user.User) (identity, error) {
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return identity{}, err
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return identity{}, err
	}
	groups := make(map[uint32]bool)
	if gids, err := u.GroupIds(); err == nil {
		for _, g := range gids {
			if n, err := strconv.ParseUint(g, 10, 32); err == nil {
				groups[uint32(n)] = true
			}
		}
	}
	id := identity{
		uid:    uint32(uid),
		gid:    uint32(gid),
		uname:  u.Username,
		groups: groups,
	}
	c.names.Put(id.uid, id.uname)
	return id, nil
}

// nameForUid returns the user name for uid, or the empty string if
// none can be found — 9P tolerates a blank owner field.
func (c *identityCache) nameForUid(uid uint32) string {
	var name string
	if c.names.Fetch(uid, &name) {
		return name
	}
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return ""
	}
	c.names.Put(uid, u.Username)
	return u.Username
}

// nameForGid returns the group name for gid, or the empty string if
// none can be found.
func (c *identityCache) nameForGid(gid uint32) string {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return ""
	}
	return g.Name
}

// resolveGroupName resolves a group name into a gid, for the plain
// 9P2000 wstat gid field — a client with no n_gid still names the
// group it wants chown'd to by name.
func (c *identityCache) resolveGroupName(name string) (uint32, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, ErrPermission
	}
	gid, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, ErrPermission
	}
	return uint32(gid), nil
}

// inGroup reports whether gid is in id's supplementary group set or
// is id's primary group.
func (id identity) inGroup(gid uint32) bool {
	if id.gid == gid {
		return true
	}
	return id.groups[gid]
}
