package shell

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var shellLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `\d+(\.\d*)?|\.\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z]+`},
	{Name: "Punct", Pattern: `\?`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// Statement is one line typed at the shell prompt, e.g. "volt 12.5V",
// "curr 0.25", "on", "off".
type Statement struct {
	Voltage *float64 `parser:"( (\"volt\" | \"voltage\" | \"v\") @Number \"V\"? )"`
	Current *float64 `parser:"| ( (\"curr\" | \"current\" | \"i\") @Number \"A\"? )"`
	Output  *string  `parser:"| @(\"on\" | \"off\")"`
	Status  bool     `parser:"| @\"status\""`
	Help    bool     `parser:"| @(\"help\" | \"?\")"`
	Quit    bool     `parser:"| @(\"quit\" | \"exit\" | \"q\")"`
}

func newParser() (*participle.Parser[Statement], error) {
	return participle.Build[Statement](
		participle.Lexer(shellLexer),
		participle.Elide("Whitespace"),
		participle.CaseInsensitive("Ident"),
	)
}
