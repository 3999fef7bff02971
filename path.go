package flashfat

import "strings"

// splitPath breaks an absolute path into its components, enforcing the
// depth and per-component length limits. "/" itself splits into zero
// components (the root). A trailing slash (other than bare "/") is
// rejected, matching the "stay consistent" Open Question decision.
func splitPath(path string) ([]string, Result) {
	if path == "" || path[0] != '/' {
		return nil, ResultInvalidArgument
	}
	if path == "/" {
		return nil, ResultOK
	}
	if strings.HasSuffix(path, "/") {
		return nil, ResultInvalidArgument
	}
	parts := strings.Split(path[1:], "/")
	if len(parts) > MaxPathDepth {
		return nil, ResultInvalidArgument
	}
	for _, p := range parts {
		if p == "" {
			return nil, ResultInvalidArgument
		}
		if len(p) > MaxNameLen {
			return nil, ResultNameTooLong
		}
	}
	return parts, ResultOK
}

// directoryAt returns the directory table living at cluster c. Cluster 0
// is the sentinel for the flat root table; any other value must be a
// cluster already known to hold a sub-directory.
func (fs *FS) directoryAt(c uint16) directory {
	if c == 0 {
		return directory{raw: fs.root}
	}
	return directory{raw: fs.clusterBytes(c)}
}

// resolvePath is the single contract used by every path-taking operation:
// when wantParent is true, only the parent directory's cluster is
// resolved and the final component is left unexamined (used by create
// paths that must find-or-reject a name themselves). When wantParent is
// false, the full path including the final component is resolved to its
// directory entry.
func (fs *FS) resolvePath(path string, wantParent bool) (parentCluster uint16, slot int, entry dirEntryView, rerr Result) {
	parts, res := splitPath(path)
	if res != ResultOK {
		return 0, 0, dirEntryView{}, res
	}
	if len(parts) == 0 {
		// Root. There is no parent of root and root has no directory entry
		// of its own, so wantParent is meaningless here; callers asking to
		// resolve "/" fully get back cluster 0 with no entry.
		if wantParent {
			return 0, 0, dirEntryView{}, ResultInvalidArgument
		}
		return 0, 0, dirEntryView{}, ResultOK
	}

	walkLen := len(parts)
	if wantParent {
		walkLen--
	}

	cluster := uint16(0)
	for i := 0; i < walkLen; i++ {
		name, ok := packName(parts[i])
		if !ok {
			return 0, 0, dirEntryView{}, ResultNameTooLong
		}
		dir := fs.directoryAt(cluster)
		_, e, found := dir.find(name)
		if !found {
			return 0, 0, dirEntryView{}, ResultNotFound
		}
		if !e.isDir() {
			return 0, 0, dirEntryView{}, ResultNotADirectory
		}
		cluster = e.firstCluster()
	}

	if wantParent {
		return cluster, 0, dirEntryView{}, ResultOK
	}

	last := parts[len(parts)-1]
	name, ok := packName(last)
	if !ok {
		return 0, 0, dirEntryView{}, ResultNameTooLong
	}
	dir := fs.directoryAt(cluster)
	idx, e, found := dir.find(name)
	if !found {
		return cluster, 0, dirEntryView{}, ResultNotFound
	}
	return cluster, idx, e, ResultOK
}

// finalComponent returns the last path component, used by operations that
// resolve the parent (wantParent==true) and then need the name to create
// or look up within it.
func finalComponent(path string) (string, Result) {
	parts, res := splitPath(path)
	if res != ResultOK {
		return "", res
	}
	if len(parts) == 0 {
		return "", ResultInvalidArgument
	}
	return parts[len(parts)-1], ResultOK
}
