package goldmark

import (
	"strconv"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// KindCitationRef is the node kind of [CitationRef].
var KindCitationRef = ast.NewNodeKind("CitationRef")

// CitationRef is an inline citation marker such as [2].
type CitationRef struct {
	ast.BaseInline
	ID int
}

// Kind implements ast.Node.
func (n *CitationRef) Kind() ast.NodeKind { return KindCitationRef }

// Dump implements ast.Node.
func (n *CitationRef) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"ID": strconv.Itoa(n.ID)}, nil)
}

// maxRefDigits bounds the marker length; answers never cite thousands of
// sources.
const maxRefDigits = 3

type citationParser struct{}

func (citationParser) Trigger() []byte { return []byte{'['} }

func (citationParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	id, n, ok := scanCitationRef(line)
	if !ok {
		return nil
	}
	// [1](url) is a link.
	if n < len(line) && line[n] == '(' {
		return nil
	}
	block.Advance(n)
	return &CitationRef{ID: id}
}

// scanCitationRef matches a leading "[n]" with n a positive integer and
// returns n and the marker's byte length.
func scanCitationRef(b []byte) (id, n int, ok bool) {
	if len(b) < 3 || b[0] != '[' {
		return 0, 0, false
	}
	i := 1
	for i < len(b) && i <= maxRefDigits && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i == 1 || i >= len(b) || b[i] != ']' {
		return 0, 0, false
	}
	id, err := strconv.Atoi(string(b[1:i]))
	if err != nil || id == 0 {
		return 0, 0, false
	}
	return id, i + 1, true
}

func walkCitations(node ast.Node, fn func(*CitationRef)) {
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *CitationRef:
			fn(n)
		case *ast.CodeSpan, *ast.FencedCodeBlock, *ast.CodeBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
}

func textReader(src []byte) text.Reader {
	return text.NewReader(src)
}
