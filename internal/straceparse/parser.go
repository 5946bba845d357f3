/*
 * Copyright (C) 2019 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package straceparse

import (
	"strconv"
	"strings"

	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// Parse turns raw tracer output into a Trace. Parsing is line oriented and
// fails fast: the first recognition failure returns a *ParseError and
// aborts the whole trace, with no partial recovery.
func Parse(input string) (*trace.Trace, error) {
	t := &trace.Trace{}

	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")

	// An optional trailing TRUNCATED marker records that the tracer cut off
	// the run. Strip blank lines from the tail first so it's recognized
	// regardless of a trailing newline.
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if end > 0 && strings.TrimSpace(lines[end-1]) == "TRUNCATED" {
		t.Truncated = true
		end--
	}
	lines = lines[:end]

	pending := map[string]*trace.Syscall{}

	for lineNo, raw := range lines {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		toks, err := lexAll(raw, lineNo+1)
		if err != nil {
			return nil, err
		}
		p := &parser{toks: toks}
		if err := p.parseLine(t, pending); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// lexAll tokenizes a full physical line.
func lexAll(src string, lineNo int) ([]Token, error) {
	l := newLexer(src, lineNo)
	var out []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == EOF {
			return out, nil
		}
	}
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) peek() Token  { return p.toks[p.pos] }
func (p *parser) peekAt(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}
func (p *parser) next() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errContext() []Token {
	start := p.pos - 5
	if start < 0 {
		start = 0
	}
	return append([]Token(nil), p.toks[start:p.pos]...)
}

func (p *parser) errorf(msg string, expected ...Kind) error {
	t := p.peek()
	return &ParseError{Line: t.Line, Col: t.Col, Message: msg, Context: p.errContext(), Expected: expected}
}

func (p *parser) expect(k Kind) (Token, error) {
	if p.peek().Kind != k {
		return Token{}, p.errorf("unexpected token "+p.peek().String(), k)
	}
	return p.next(), nil
}

// parseLine parses one physical line and either appends a completed Line to
// t, registers a new pending unfinished syscall, or completes a pending one
// found via a resumed marker.
func (p *parser) parseLine(t *trace.Trace, pending map[string]*trace.Syscall) error {
	pid := ""
	if p.peek().Kind == NUMBER {
		pid = p.next().Text
	}

	switch p.peek().Kind {
	case PLUSPLUS:
		stmt, err := p.parseExitStatement(pid)
		if err != nil {
			return err
		}
		t.Lines = append(t.Lines, stmt)
		return nil
	case MINUSMINUS:
		sig, err := p.parseSignal(pid)
		if err != nil {
			return err
		}
		t.Lines = append(t.Lines, sig)
		return nil
	case RESUMED_OPEN:
		p.next()
		if strings.HasPrefix(joinRemainder(p), "resuming interrupted futex ...") {
			// Nothing useful to merge; the tracer is just narrating that a
			// futex wait woke up mid flight.
			return nil
		}
		nameTok, err := p.expect(IDENT)
		if err != nil {
			return err
		}
		if _, err := p.expect(RESUMED_CLOSE); err != nil {
			return err
		}
		sc, ok := pending[pid]
		if !ok || sc.Name != nameTok.Text {
			return p.errorf("resumed syscall " + nameTok.Text + " with no matching unfinished call")
		}
		delete(pending, pid)
		rest, exit, notes, err := p.parseArgListTail()
		if err != nil {
			return err
		}
		sc.Arguments = append(sc.Arguments, rest...)
		sc.Exit = exit
		sc.Notes = notes
		sc.Resumed = true
		return nil
	default:
		sc, unfinished, err := p.parseSyscall(pid)
		if err != nil {
			return err
		}
		t.Lines = append(t.Lines, sc)
		if unfinished {
			pending[pid] = sc
		}
		return nil
	}
}

func joinRemainder(p *parser) string {
	var sb strings.Builder
	for i := p.pos; i < len(p.toks) && p.toks[i].Kind != EOF; i++ {
		if i > p.pos {
			sb.WriteByte(' ')
		}
		sb.WriteString(tokenText(p.toks[i]))
	}
	return sb.String()
}

// tokenText returns a token's original text if it has one, falling back to
// its punctuation spelling. Used only for reconstructing human-readable
// text from a token run (error context, opaque-expression capture), never
// for comparisons.
func tokenText(t Token) string {
	if t.Text != "" {
		return t.Text
	}
	return t.Kind.String()
}

func (p *parser) parseExitStatement(pid string) (*trace.ExitStatement, error) {
	if _, err := p.expect(PLUSPLUS); err != nil {
		return nil, err
	}
	es := &trace.ExitStatement{PID: pid}
	name, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}
	switch name.Text {
	case "exited":
		if _, err := p.expectIdentText("with"); err != nil {
			return nil, err
		}
		num, err := p.expect(NUMBER)
		if err != nil {
			return nil, err
		}
		v, _ := strconv.ParseInt(num.Text, 0, 64)
		es.HasStatus = true
		es.Status = int(v)
	case "killed":
		if _, err := p.expectIdentText("by"); err != nil {
			return nil, err
		}
		sig, err := p.expect(IDENT)
		if err != nil {
			return nil, err
		}
		es.SignalName = sig.Text
	default:
		return nil, p.errorf("unrecognized exit statement kind " + name.Text)
	}
	if _, err := p.expect(PLUSPLUS); err != nil {
		return nil, err
	}
	return es, nil
}

func (p *parser) expectIdentText(text string) (Token, error) {
	t := p.peek()
	if t.Kind != IDENT || t.Text != text {
		return Token{}, p.errorf("expected \"" + text + "\"")
	}
	return p.next(), nil
}

func (p *parser) parseSignal(pid string) (*trace.Signal, error) {
	if _, err := p.expect(MINUSMINUS); err != nil {
		return nil, err
	}
	name, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}
	sig := &trace.Signal{Name: name.Text, PID: pid}
	if p.peek().Kind == LBRACE {
		p.next()
		for p.peek().Kind != RBRACE {
			key, err := p.expect(IDENT)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(EQUALS); err != nil {
				return nil, err
			}
			val, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			sig.Payload = append(sig.Payload, trace.NamedLiteral{Name: key.Text, Value: val})
			if p.peek().Kind == COMMA {
				p.next()
				continue
			}
			break
		}
		if _, err := p.expect(RBRACE); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(MINUSMINUS); err != nil {
		return nil, err
	}
	return sig, nil
}

// parseSyscall parses "name(args) = exit" or its unfinished variant
// "name(args <unfinished ...>". The second return is true for the latter.
func (p *parser) parseSyscall(pid string) (*trace.Syscall, bool, error) {
	name, err := p.expect(IDENT)
	if err != nil {
		return nil, false, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, false, err
	}
	sc := &trace.Syscall{Name: name.Text, PID: pid}

	for p.peek().Kind != RPAREN {
		if p.peek().Kind == UNFINISHED_OPEN {
			p.next()
			sc.Unfinished = true
			return sc, true, nil
		}
		arg, err := p.parseArgument()
		if err != nil {
			return nil, false, err
		}
		sc.Arguments = append(sc.Arguments, arg)
		if p.peek().Kind == COMMA {
			p.next()
			continue
		}
		break
	}
	if p.peek().Kind == UNFINISHED_OPEN {
		p.next()
		sc.Unfinished = true
		return sc, true, nil
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, false, err
	}
	exit, notes, err := p.parseExitAndNotes()
	if err != nil {
		return nil, false, err
	}
	sc.Exit = exit
	sc.Notes = notes
	return sc, false, nil
}

// parseArgListTail parses the remainder of an argument list and its tail
// after a "<... name resumed>" marker, i.e. ", arg, arg) = exit notes" or
// just ") = exit notes" if no arguments remained.
func (p *parser) parseArgListTail() ([]trace.Argument, *trace.ExitCode, string, error) {
	var args []trace.Argument
	if p.peek().Kind == COMMA {
		p.next()
	}
	for p.peek().Kind != RPAREN {
		arg, err := p.parseArgument()
		if err != nil {
			return nil, nil, "", err
		}
		args = append(args, arg)
		if p.peek().Kind == COMMA {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, nil, "", err
	}
	exit, notes, err := p.parseExitAndNotes()
	return args, exit, notes, err
}

func (p *parser) parseExitAndNotes() (*trace.ExitCode, string, error) {
	if p.peek().Kind == EOF {
		return nil, "", nil
	}
	if _, err := p.expect(EQUALS); err != nil {
		return nil, "", err
	}
	if p.peek().Kind == IDENT && p.peek().Text == "?" {
		p.next()
		return &trace.ExitCode{Known: false}, "", nil
	}
	// Any other non-numeric return also leaves the value unknown; the rest
	// of the line is kept as notes.
	if p.peek().Kind == NUMBER {
		num := p.next()
		v, _ := strconv.ParseInt(num.Text, 0, 64)
		code := &trace.ExitCode{Known: true, Value: v, Raw: num.Text}
		notes := joinRemainder(p)
		return code, notes, nil
	}
	notes := joinRemainder(p)
	return &trace.ExitCode{Known: false}, notes, nil
}

// parseArgument parses a single syscall argument position: the omitted
// sentinel, or a literal optionally named and optionally followed by a
// "=> <literal>" mapping destination.
func (p *parser) parseArgument() (trace.Argument, error) {
	if p.peek().Kind == ELLIPSIS && (p.peekAt(1).Kind == COMMA || p.peekAt(1).Kind == RPAREN) {
		p.next()
		return trace.Omitted{}, nil
	}

	lit := &trace.Literal{}
	if p.peek().Kind == IDENT && p.peekAt(1).Kind == EQUALS {
		lit.HasIdentifier = true
		lit.Identifier = p.next().Text
		p.next() // '='
	}
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	lit.Value = val

	if p.peek().Kind == ARROW {
		p.next()
		dest, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		lit.MapsTo = &trace.Literal{Value: dest}
	}
	return lit, nil
}

// parseValue parses one LiteralValue. It backtracks to a raw-capture
// fallback (producing a NumericExpr or BooleanExpr) when it cannot make
// sense of what follows; this keeps exotic status-expression arguments
// (e.g. "WIFEXITED(s) && WEXITSTATUS(s) == 127") from aborting the whole
// trace, since such values are rarely inspected by later stages.
func (p *parser) parseValue() (trace.LiteralValue, error) {
	start := p.pos
	v, err := p.tryParseValue()
	if err != nil {
		p.pos = start
		return p.captureOpaqueExpression()
	}
	return v, nil
}

func (p *parser) tryParseValue() (trace.LiteralValue, error) {
	t := p.peek()
	switch t.Kind {
	case NUMBER:
		p.next()
		v, _ := strconv.ParseInt(t.Text, 0, 64)
		if p.peek().Kind == LT {
			p.next()
			return p.parseFileDescriptor(v)
		}
		if p.peek().Kind == PIPE {
			return p.parseNumericExprFrom(t.Text)
		}
		return trace.NumberValue{Text: t.Text, Value: v}, nil
	case STRING:
		p.next()
		return trace.StringValue{Raw: t.Text, Truncated: t.Truncated}, nil
	case ELLIPSIS:
		p.next()
		return trace.IdentifierValue{Name: "..."}, nil
	case IDENT:
		p.next()
		if t.Text == "NULL" {
			return trace.NullValue{}, nil
		}
		if p.peek().Kind == LPAREN {
			return p.parseFunctionCall(t.Text)
		}
		if p.peek().Kind == PIPE {
			return p.parseNumericExprFrom(t.Text)
		}
		return trace.IdentifierValue{Name: t.Text}, nil
	case LBRACK:
		return p.parseCollection(LBRACK, RBRACK, trace.BracketList)
	case LBRACE:
		return p.parseCollection(LBRACE, RBRACE, trace.BracketStruct)
	case LPAREN:
		return p.parseCollection(LPAREN, RPAREN, trace.BracketParen)
	default:
		return nil, p.errorf("unexpected token in argument value " + t.String())
	}
}

func (p *parser) parseNumericExprFrom(first string) (trace.LiteralValue, error) {
	sb := strings.Builder{}
	sb.WriteString(first)
	for p.peek().Kind == PIPE {
		p.next()
		sb.WriteString("|")
		t := p.peek()
		if t.Kind != IDENT && t.Kind != NUMBER {
			return nil, p.errorf("expected identifier or number after |")
		}
		p.next()
		sb.WriteString(t.Text)
	}
	return trace.NumericExpr{Text: sb.String()}, nil
}

func (p *parser) parseFunctionCall(name string) (trace.LiteralValue, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	var args []*trace.Literal
	for p.peek().Kind != RPAREN {
		a, err := p.parseArgument()
		if err != nil {
			return nil, err
		}
		lit, ok := a.(*trace.Literal)
		if !ok {
			return nil, p.errorf("omitted argument inside function call")
		}
		args = append(args, lit)
		if p.peek().Kind == COMMA {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return trace.FunctionCallValue{Identifier: name, Arguments: args}, nil
}

func (p *parser) parseCollection(open, closeKind Kind, bracket trace.Bracket) (trace.LiteralValue, error) {
	if _, err := p.expect(open); err != nil {
		return nil, err
	}
	coll := trace.CollectionValue{Bracket: bracket}
	for p.peek().Kind != closeKind {
		a, err := p.parseArgument()
		if err != nil {
			return nil, err
		}
		lit, ok := a.(*trace.Literal)
		if !ok {
			lit = &trace.Literal{Value: trace.IdentifierValue{Name: "..."}}
		}
		coll.Items = append(coll.Items, lit)
		if p.peek().Kind == COMMA {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(closeKind); err != nil {
		return nil, err
	}
	return coll, nil
}

// parseFileDescriptor parses the annotation content following "fd<" up to
// the closing '>'.
func (p *parser) parseFileDescriptor(fd int64) (trace.LiteralValue, error) {
	first := p.peek()
	if first.Kind == GT {
		p.next()
		return trace.PathFileDescriptor{FD: fd, Path: ""}, nil
	}
	p.next()
	word := first.Text

	if word == "char" || word == "block" {
		major, err := p.expect(NUMBER)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(COLON); err != nil {
			return nil, err
		}
		minor, err := p.expect(NUMBER)
		if err != nil {
			return nil, err
		}
		path := ""
		if p.peek().Kind == PATH {
			path = p.next().Text
		}
		if _, err := p.expect(GT); err != nil {
			return nil, err
		}
		maj, _ := strconv.ParseInt(major.Text, 0, 64)
		min, _ := strconv.ParseInt(minor.Text, 0, 64)
		return trace.DeviceFileDescriptor{FD: fd, DevType: word, Major: maj, Minor: min, Path: path}, nil
	}

	if p.peek().Kind == COLON {
		p.next()
		switch {
		case isIPProtocol(word):
			src, err := p.parseFDInfoAddress()
			if err != nil {
				return nil, err
			}
			if p.peek().Kind == ARROW {
				p.next()
				dst, err := p.parseFDInfoAddress()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(RBRACK); err != nil {
					return nil, err
				}
				if _, err := p.expect(GT); err != nil {
					return nil, err
				}
				return trace.IPSocketFileDescriptor{FD: fd, Protocol: word, HasSource: true, Source: src, Dest: dst}, nil
			}
			if _, err := p.expect(RBRACK); err != nil {
				return nil, err
			}
			if _, err := p.expect(GT); err != nil {
				return nil, err
			}
			return trace.IPSocketFileDescriptor{FD: fd, Protocol: word, Dest: src}, nil
		case word == "NETLINK":
			subTok, err := p.expect(PATH)
			if err != nil {
				return nil, err
			}
			sub := subTok.Text
			if _, err := p.expect(COLON); err != nil {
				return nil, err
			}
			pidTok, err := p.expect(NUMBER)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACK); err != nil {
				return nil, err
			}
			if _, err := p.expect(GT); err != nil {
				return nil, err
			}
			return trace.NetlinkFileDescriptor{FD: fd, Protocol: "NETLINK", SubProtocol: sub, PID: pidTok.Text}, nil
		default:
			inode, err := p.expect(NUMBER)
			if err != nil {
				return nil, err
			}
			sfd := trace.SocketFileDescriptor{FD: fd, Protocol: word, Inode: inode.Text}
			if p.peek().Kind == ARROW {
				p.next()
				peer, err := p.expect(NUMBER)
				if err != nil {
					return nil, err
				}
				sfd.HasPeer = true
				sfd.PeerInode = peer.Text
			}
			if p.peek().Kind == COMMA {
				p.next()
				name, err := p.expect(PATH)
				if err != nil {
					return nil, err
				}
				sfd.HasName = true
				sfd.BoundName = name.Text
			}
			if _, err := p.expect(RBRACK); err != nil {
				return nil, err
			}
			if _, err := p.expect(GT); err != nil {
				return nil, err
			}
			return sfd, nil
		}
	}

	if _, err := p.expect(GT); err != nil {
		return nil, err
	}
	return trace.PathFileDescriptor{FD: fd, Path: word}, nil
}

func (p *parser) parseFDInfoAddress() (string, error) {
	var sb strings.Builder
	for {
		t := p.peek()
		if t.Kind == ARROW || t.Kind == RBRACK || t.Kind == COMMA {
			break
		}
		if t.Kind != PATH && t.Kind != NUMBER {
			return "", p.errorf("malformed socket address")
		}
		p.next()
		sb.WriteString(t.Text)
		if p.peek().Kind == COLON {
			p.next()
			sb.WriteString(":")
		}
	}
	return sb.String(), nil
}

func isIPProtocol(word string) bool {
	switch word {
	case "TCP", "UDP", "TCPv6", "UDPv6", "UNIX":
		return true
	}
	return false
}

// captureOpaqueExpression reconstructs, on a best-effort basis, the raw
// text of a value that the structured grammar could not classify, up to
// the next top-level comma or closing bracket. Used for status-expression
// arguments like "WIFEXITED(s) && WEXITSTATUS(s) == 127" that this parser
// does not tokenize operators for, since such values are preserved
// opaquely rather than interpreted.
func (p *parser) captureOpaqueExpression() (trace.LiteralValue, error) {
	depth := 0
	var sb strings.Builder
	sawComparisonLike := false
	for {
		t := p.peek()
		if t.Kind == EOF {
			break
		}
		if depth == 0 && (t.Kind == COMMA || t.Kind == RPAREN || t.Kind == RBRACK || t.Kind == RBRACE) {
			break
		}
		switch t.Kind {
		case LPAREN, LBRACK, LBRACE:
			depth++
		case RPAREN, RBRACK, RBRACE:
			depth--
		}
		if t.Kind == EQUALS && p.peekAt(1).Kind != EOF {
			sawComparisonLike = true
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(tokenText(t))
		p.next()
	}
	if sb.Len() == 0 {
		return nil, p.errorf("cannot recover a value here")
	}
	text := sb.String()
	if sawComparisonLike || strings.Contains(text, "&&") {
		return trace.BooleanExpr{Text: text}, nil
	}
	return trace.NumericExpr{Text: text}, nil
}
