package profiles

// Family describes one supported external CLI tool. Families are fully
// independent: separate profile collections, separate destination files.
type Family struct {
	Name    string `json:"name"`     // stable identifier, e.g. "codex"
	DirName string `json:"dir_name"` // home dot-directory, e.g. ".codex"
	Label   string `json:"label"`    // menu and table heading
}

// ProfilesCollection names the document collection holding the family's
// profiles.
func (f Family) ProfilesCollection() string {
	return f.Name + "_profiles"
}

// CommonCollection names the document collection holding the family's
// shared config layer.
func (f Family) CommonCollection() string {
	return f.Name + "_common"
}

// Families returns the built-in tool families in display order.
func Families() []Family {
	return []Family{
		{Name: "codex", DirName: ".codex", Label: "Codex"},
		{Name: "claude", DirName: ".claude", Label: "Claude Code"},
	}
}

// FamilyByName resolves a family identifier.
func FamilyByName(name string) (Family, bool) {
	for _, family := range Families() {
		if family.Name == name {
			return family, true
		}
	}
	return Family{}, false
}
