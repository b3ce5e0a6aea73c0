package styles

// HighContrastTheme favors legibility on low-quality terminals.
var HighContrastTheme = Theme{
	Name:        "high-contrast",
	BorderStyle: "sharp",
	Base: BaseColors{
		Background: "16",
		Foreground: "231",
		Muted:      "250",
		Accent:     "51",
		Border:     "231",
	},
	Card: CardColors{
		Quote:     "231",
		QuoteBar:  "226",
		Highlight: "226",
		Tag:       "236",
		TagText:   "231",
		Draft:     "214",
		Hidden:    "248",
	},
	Chrome: ChromeColors{
		Header:       "117",
		Footer:       "159",
		Breadcrumb:   "195",
		SelectedItem: "51",
		FocusedItem:  "225",
		Error:        "196",
	},
	Borders: BorderColors{
		ActivePane:   "231",
		InactivePane: "250",
		Divider:      "248",
	},
}
