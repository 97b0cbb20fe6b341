package dbus

// An FDTable holds the out-of-band file descriptors associated with a
// single marshalled or unmarshalled message body. DBus carries file
// descriptors alongside a message rather than inline in the byte
// stream: the wire payload only ever holds a uint32 index into this
// table.
//
// On encode, a FDTable is built up as [UnixFd] values are marshalled,
// deduplicating descriptors that repeat. On decode, a FDTable is
// supplied by the caller (it arrives via whatever transport-level
// mechanism carried the message, e.g. SCM_RIGHTS) and
// [UnixFdIndexOutOfRange] is returned for any index a malicious or
// corrupt message claims that the table doesn't have.
type FDTable struct {
	fds []int
}

// NewFDTable returns a FDTable pre-populated with fds, in order, for
// use when unmarshalling a message that arrived with out-of-band
// descriptors already resolved.
func NewFDTable(fds ...int) *FDTable {
	t := &FDTable{fds: make([]int, len(fds))}
	copy(t.fds, fds)
	return t
}

// Append records fd in the table, returning its wire index. If fd is
// already present, Append returns the existing index instead of
// adding a duplicate entry.
func (t *FDTable) Append(fd int) uint32 {
	for i, have := range t.fds {
		if have == fd {
			return uint32(i)
		}
	}
	t.fds = append(t.fds, fd)
	return uint32(len(t.fds) - 1)
}

// Fds returns the table's descriptors, in wire index order. The
// returned slice aliases the table's internal storage and must not be
// modified.
func (t *FDTable) Fds() []int {
	if t == nil {
		return nil
	}
	return t.fds
}

// Len returns the number of descriptors in the table.
func (t *FDTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.fds)
}

// Resolve returns the descriptor at wire index idx. It returns
// [UnixFdIndexOutOfRange] if idx is not a valid index into the table,
// which includes the case of a nil table (a message that references
// fd index 0 but arrived with no descriptors at all).
func (t *FDTable) Resolve(idx uint32) (int, error) {
	if t == nil || idx >= uint32(len(t.fds)) {
		return 0, UnmarshalError{Kind: UnixFdIndexOutOfRange, Detail: "fd index out of range"}
	}
	return t.fds[idx], nil
}
