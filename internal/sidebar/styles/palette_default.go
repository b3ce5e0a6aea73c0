package styles

// DefaultTheme is the baseline dark palette.
var DefaultTheme = Theme{
	Name:        "default",
	BorderStyle: "rounded",
	UserPalette: append([]string(nil), UserColorPalette...),
	Base: BaseColors{
		Background: "234",
		Foreground: "252",
		Muted:      "245",
		Accent:     "75",
		Border:     "240",
	},
	Card: CardColors{
		Quote:     "250",
		QuoteBar:  "179",
		Highlight: "221",
		Tag:       "237",
		TagText:   "153",
		Draft:     "214",
		Hidden:    "241",
	},
	Chrome: ChromeColors{
		Header:       "111",
		Footer:       "110",
		Breadcrumb:   "109",
		SelectedItem: "75",
		FocusedItem:  "147",
		Error:        "203",
	},
	Borders: BorderColors{
		ActivePane:   "75",
		InactivePane: "240",
		Divider:      "238",
	},
}
