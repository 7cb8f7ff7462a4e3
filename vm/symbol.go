package vm

// ---------------------------------------------------------------------------
// SymbolTable: Interned symbols
// ---------------------------------------------------------------------------

// SymbolTable interns symbol names to dense IDs. Two symbol objects are the
// same symbol exactly when their IDs match, which is the same as comparing
// their names.
type SymbolTable struct {
	byName map[string]uint32
	byID   []string
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName: make(map[string]uint32),
		byID:   make([]string, 0, 64),
	}
}

// Intern returns the ID for name, assigning a new one on first use.
func (st *SymbolTable) Intern(name string) uint32 {
	if id, ok := st.byName[name]; ok {
		return id
	}
	id := uint32(len(st.byID))
	st.byName[name] = id
	st.byID = append(st.byID, name)
	return id
}

// Lookup returns the ID for name without interning it.
func (st *SymbolTable) Lookup(name string) (uint32, bool) {
	id, ok := st.byName[name]
	return id, ok
}

// Name returns the name for id, or "" if id was never assigned.
func (st *SymbolTable) Name(id uint32) string {
	if int(id) >= len(st.byID) {
		return ""
	}
	return st.byID[id]
}

// Len returns the number of interned symbols.
func (st *SymbolTable) Len() int {
	return len(st.byID)
}
