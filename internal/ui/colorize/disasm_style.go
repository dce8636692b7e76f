package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// PcodeDark is the listing style: white mnemonics, teal registers, pink
// numbers and gold labels.
var PcodeDark = styles.Register(chroma.MustNewStyle("pcode-dark", chroma.StyleEntries{
	chroma.Text:       "#FFFFFF",
	chroma.Background: "bg:#1e1e1e",
	chroma.Comment:    "#6A9955",

	chroma.Keyword:       "#FFFFFF",
	chroma.KeywordPseudo: "#C586C0",
	chroma.Name:          "#7C9C9D",
	chroma.NameBuiltin:   "#7C9C9D",
	chroma.NameVariable:  "#7C9C9D",
	chroma.NameFunction:  "#FFFFFF", // nasm tokenizes mnemonics as functions
	chroma.NameLabel:     "#FFD700",

	chroma.LiteralNumber:    "#FF5F87",
	chroma.LiteralNumberHex: "#FF5F87",

	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: "#FFFFFF",
	chroma.String:      "#EACD53",
}))
