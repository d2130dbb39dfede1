package services

import (
	"math/rand"
)

// Element is one entry of the static periodic-table reference data.
type Element struct {
	AtomicNumber int    `json:"atomic_number"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
}

// Question asks for the symbol of a named element. Options hold the
// correct symbol plus three distractors in shuffled order.
type Question struct {
	Element Element  `json:"element"`
	Prompt  string   `json:"prompt"`
	Answer  string   `json:"answer"`
	Options []string `json:"options"`
}

// elementBank is the static question source. Read-only reference data;
// decks sample from it without replacement at match creation.
var elementBank = []Element{
	{1, "Hydrogen", "H"},
	{2, "Helium", "He"},
	{3, "Lithium", "Li"},
	{4, "Beryllium", "Be"},
	{5, "Boron", "B"},
	{6, "Carbon", "C"},
	{7, "Nitrogen", "N"},
	{8, "Oxygen", "O"},
	{9, "Fluorine", "F"},
	{10, "Neon", "Ne"},
	{11, "Sodium", "Na"},
	{12, "Magnesium", "Mg"},
	{13, "Aluminium", "Al"},
	{14, "Silicon", "Si"},
	{15, "Phosphorus", "P"},
	{16, "Sulfur", "S"},
	{17, "Chlorine", "Cl"},
	{18, "Argon", "Ar"},
	{19, "Potassium", "K"},
	{20, "Calcium", "Ca"},
	{22, "Titanium", "Ti"},
	{24, "Chromium", "Cr"},
	{25, "Manganese", "Mn"},
	{26, "Iron", "Fe"},
	{27, "Cobalt", "Co"},
	{28, "Nickel", "Ni"},
	{29, "Copper", "Cu"},
	{30, "Zinc", "Zn"},
	{33, "Arsenic", "As"},
	{34, "Selenium", "Se"},
	{35, "Bromine", "Br"},
	{36, "Krypton", "Kr"},
	{38, "Strontium", "Sr"},
	{40, "Zirconium", "Zr"},
	{42, "Molybdenum", "Mo"},
	{44, "Ruthenium", "Ru"},
	{46, "Palladium", "Pd"},
	{47, "Silver", "Ag"},
	{48, "Cadmium", "Cd"},
	{50, "Tin", "Sn"},
	{51, "Antimony", "Sb"},
	{53, "Iodine", "I"},
	{54, "Xenon", "Xe"},
	{55, "Caesium", "Cs"},
	{56, "Barium", "Ba"},
	{74, "Tungsten", "W"},
	{78, "Platinum", "Pt"},
	{79, "Gold", "Au"},
	{80, "Mercury", "Hg"},
	{82, "Lead", "Pb"},
	{83, "Bismuth", "Bi"},
	{86, "Radon", "Rn"},
	{88, "Radium", "Ra"},
	{92, "Uranium", "U"},
}

// Elements returns the full reference bank in atomic-number order.
func Elements() []Element {
	out := make([]Element, len(elementBank))
	copy(out, elementBank)
	return out
}

// BankSize is the number of elements available to sample questions from.
func BankSize() int {
	return len(elementBank)
}

// questionFor builds the question for one bank entry with three distractor
// symbols drawn from other elements.
func questionFor(idx int) Question {
	el := elementBank[idx]

	options := []string{el.Symbol}
	seen := map[int]bool{idx: true}
	for len(options) < 4 {
		j := rand.Intn(len(elementBank))
		if seen[j] {
			continue
		}
		seen[j] = true
		options = append(options, elementBank[j].Symbol)
	}
	rand.Shuffle(len(options), func(a, b int) {
		options[a], options[b] = options[b], options[a]
	})

	return Question{
		Element: el,
		Prompt:  "Which symbol belongs to " + el.Name + "?",
		Answer:  el.Symbol,
		Options: options,
	}
}
