package feeds

import "strings"

var categories = []Category{
	{ID: "work-skills", Name: "Work skills", Description: "Professional craft, management and communication"},
	{ID: "ai-tech", Name: "AI tech", Description: "Machine learning, models and tooling"},
	{ID: "investing", Name: "Investing", Description: "Markets, companies and personal finance"},
	{ID: "personal-growth", Name: "Personal growth", Description: "Habits, health and learning"},
}

// Categories returns the fixed vault categories.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ValidCategory reports whether id names a vault category.
func ValidCategory(id string) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func categoryIDs() string {
	ids := make([]string, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}
	return strings.Join(ids, ", ")
}
