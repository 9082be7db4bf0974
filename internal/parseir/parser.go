package parseir

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nikomatsakis/borrowck/internal/ir"
)

// Parse reads a complete function from r. The grammar:
//
//	program    := item*
//	item       := struct_decl | region_decl | var_decl | block_decl | assert_decl
//
//	struct_decl := "struct" ident "(" (param ("," param)*)? ")" "{" field* "}"
//	param      := "#may_dangle"? ("+"|"-"|"=")? (lifetime | ident)
//	field      := ident ":" type ","?
//
//	region_decl := "region" lifetime (":" lifetime ("," lifetime)*)? ";"
//	var_decl   := "let" ident ":" type ";"
//
//	type       := "Unit"
//	            | "&" lifetime "mut"? type
//	            | ident ("(" type_arg ("," type_arg)* ")")?
//	            | lifetime
//	type_arg   := lifetime | type
//
//	block_decl := "block" ident "{" stmt* ("goto" (ident ("," ident)*)? ";")? "}"
//	stmt       := expect_error? action ";"
//	expect_error := "//~ERROR" <rest of line>
//	action     := path "=" "use" "(" (path ("," path)*)? ")"   // Init
//	            | path "=" "&" lifetime "mut"? path             // Borrow
//	            | path "=" path                                  // Assign
//	            | "constraint" lifetime ":" lifetime              // Constraint
//	            | "use" "(" path ")"                               // Use
//	            | "drop" "(" path ")"                               // Drop
//	            | "storagedead" "(" ident ")"                        // StorageDead
//	            | "noop"                                               // Noop
//	path       := ident ("." (ident | "*"))*
//
//	assert_decl := "assert" assertion ";"
//	assertion  := lifetime "==" "{" (point ("," point)*)? "}"
//	            | lifetime "in" point
//	            | lifetime "not_in" point
//	            | ident "live_at" ident
//	            | ident "not_live_at" ident
//	            | lifetime "live_at" ident
//	            | lifetime "not_live_at" ident
//	point      := "(" ident "/" int ")"
//
// Within a struct's field list, a bare lifetime or identifier matching
// one of the struct's own declared parameter names resolves to a bound
// placeholder (ir.BoundRegion / ir.BoundType) rather than a free region
// or a zero-argument struct instantiation.
func Parse(r io.Reader, filename string) (*ir.Function, error) {
	p := &parser{lex: newLexer(r, filename)}
	return p.parseFunction()
}

type parser struct {
	lex *lexer
	fn  ir.Function

	// structParams holds the enclosing struct declaration's parameter
	// names, in order, while parsing its field list; nil outside that
	// context.
	structParams []structParam
}

type structParam struct {
	name   string
	region bool // true if declared with a leading '
}

func (p *parser) parseFunction() (*ir.Function, error) {
	for {
		t := p.lex.peekTok()
		switch {
		case t.kind == tokEOF:
			return &p.fn, nil
		case t.kind == tokIdent && t.text == "struct":
			if err := p.parseStructDecl(); err != nil {
				return nil, err
			}
		case t.kind == tokIdent && t.text == "region":
			if err := p.parseRegionDecl(); err != nil {
				return nil, err
			}
		case t.kind == tokIdent && t.text == "let":
			if err := p.parseVarDecl(); err != nil {
				return nil, err
			}
		case t.kind == tokIdent && t.text == "block":
			if err := p.parseBlockDecl(); err != nil {
				return nil, err
			}
		case t.kind == tokIdent && t.text == "assert":
			if err := p.parseAssertDecl(); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf(t.pos, "unexpected token %s, expected a top-level item", t)
		}
	}
}

func (p *parser) expectPunct(s string) (token, error) {
	t := p.lex.next()
	if t.kind != tokPunct || t.text != s {
		return t, p.errorf(t.pos, "expected %q, found %s", s, t)
	}
	return t, nil
}

func (p *parser) acceptPunct(s string) bool {
	t := p.lex.peekTok()
	if t.kind == tokPunct && t.text == s {
		p.lex.next()
		return true
	}
	return false
}

func (p *parser) expectIdent() (string, error) {
	t := p.lex.next()
	if t.kind != tokIdent {
		return "", p.errorf(t.pos, "expected an identifier, found %s", t)
	}
	return t.text, nil
}

func (p *parser) expectKeyword(kw string) error {
	t := p.lex.next()
	if t.kind != tokIdent || t.text != kw {
		return p.errorf(t.pos, "expected %q, found %s", kw, t)
	}
	return nil
}

func (p *parser) acceptKeyword(kw string) bool {
	t := p.lex.peekTok()
	if t.kind == tokIdent && t.text == kw {
		p.lex.next()
		return true
	}
	return false
}

// expectLifetime consumes a lifetime token and returns its name with
// the leading apostrophe stripped (region names elsewhere in the
// analysis are bare, e.g. "a" rather than "'a").
func (p *parser) expectLifetime() (string, error) {
	t := p.lex.next()
	if t.kind != tokLifetime {
		return "", p.errorf(t.pos, "expected a lifetime (e.g. 'a), found %s", t)
	}
	return t.text[1:], nil
}

// --- struct declarations ---

func (p *parser) parseStructDecl() error {
	if err := p.expectKeyword("struct"); err != nil {
		return err
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if _, err := p.expectPunct("("); err != nil {
		return err
	}
	var params []ir.StructParameter
	var names []structParam
	if !p.acceptPunct(")") {
		for {
			param, sp, err := p.parseStructParam()
			if err != nil {
				return err
			}
			params = append(params, param)
			names = append(names, sp)
			if p.acceptPunct(",") {
				continue
			}
			break
		}
		if _, err := p.expectPunct(")"); err != nil {
			return err
		}
	}

	p.structParams = names
	defer func() { p.structParams = nil }()

	if _, err := p.expectPunct("{"); err != nil {
		return err
	}
	var fields []ir.FieldDecl
	for !p.acceptPunct("}") {
		fname, err := p.expectIdent()
		if err != nil {
			return err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return err
		}
		ty, err := p.parseType()
		if err != nil {
			return err
		}
		fields = append(fields, ir.FieldDecl{Name: ir.FieldName(fname), Ty: ty})
		p.acceptPunct(",")
	}

	p.fn.Structs = append(p.fn.Structs, ir.StructDecl{
		Name:       ir.StructName(name),
		Parameters: params,
		Fields:     fields,
	})
	return nil
}

func (p *parser) parseStructParam() (ir.StructParameter, structParam, error) {
	mayDangle := false
	if p.acceptPunct("#") {
		if err := p.expectKeyword("may_dangle"); err != nil {
			return ir.StructParameter{}, structParam{}, err
		}
		mayDangle = true
	}
	variance := ir.Covariant
	switch {
	case p.acceptPunct("+"):
		variance = ir.Covariant
	case p.acceptPunct("-"):
		variance = ir.Contravariant
	case p.acceptPunct("="):
		variance = ir.Invariant
	}

	t := p.lex.next()
	switch t.kind {
	case tokLifetime:
		return ir.StructParameter{Kind: ir.KindRegion, Variance: variance, MayDangle: mayDangle},
			structParam{name: t.text[1:], region: true}, nil
	case tokIdent:
		return ir.StructParameter{Kind: ir.KindType, Variance: variance, MayDangle: mayDangle},
			structParam{name: t.text, region: false}, nil
	default:
		return ir.StructParameter{}, structParam{}, p.errorf(t.pos, "expected a struct parameter, found %s", t)
	}
}

// boundDepthFor returns the de Bruijn depth for the name-th declared
// struct parameter: parameters are addressed innermost-first, so the
// last declared parameter is depth 0.
func boundDepthFor(params []structParam, name string) (int, bool) {
	for i, sp := range params {
		if sp.name == name {
			return len(params) - 1 - i, true
		}
	}
	return 0, false
}

// --- region declarations ---

func (p *parser) parseRegionDecl() error {
	if err := p.expectKeyword("region"); err != nil {
		return err
	}
	name, err := p.expectLifetime()
	if err != nil {
		return err
	}
	region := ir.RegionName(name)
	p.fn.Regions = append(p.fn.Regions, region)

	if p.acceptPunct(":") {
		for {
			sub, err := p.expectLifetime()
			if err != nil {
				return err
			}
			p.fn.Outlives = append(p.fn.Outlives, ir.OutlivesConstraint{Sup: region, Sub: ir.RegionName(sub)})
			if p.acceptPunct(",") {
				continue
			}
			break
		}
	}
	_, err = p.expectPunct(";")
	return err
}

// --- variable declarations ---

func (p *parser) parseVarDecl() error {
	if err := p.expectKeyword("let"); err != nil {
		return err
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if _, err := p.expectPunct(":"); err != nil {
		return err
	}
	ty, err := p.parseType()
	if err != nil {
		return err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return err
	}
	p.fn.Decls = append(p.fn.Decls, ir.VariableDecl{Var: ir.Variable(name), Ty: ty})
	return nil
}

// --- types ---

func (p *parser) parseType() (ir.Type, error) {
	t := p.lex.peekTok()
	switch {
	case t.kind == tokIdent && t.text == "Unit":
		p.lex.next()
		return ir.UnitType{}, nil
	case t.kind == tokPunct && t.text == "&":
		p.lex.next()
		lt, err := p.expectLifetime()
		if err != nil {
			return nil, err
		}
		region, err := p.resolveRegion(lt)
		if err != nil {
			return nil, err
		}
		kind := ir.Shared
		if p.acceptKeyword("mut") {
			kind = ir.Mut
		}
		referent, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return ir.RefType{Region: region, Kind: kind, Referent: referent}, nil
	case t.kind == tokLifetime:
		p.lex.next()
		if depth, ok := boundDepthFor(p.structParams, t.text[1:]); ok {
			return ir.BoundType{Depth: depth}, nil
		}
		return nil, p.errorf(t.pos, "lifetime %s is not a bound struct parameter in this context", t.text)
	case t.kind == tokIdent:
		p.lex.next()
		if depth, ok := boundDepthFor(p.structParams, t.text); ok {
			return ir.BoundType{Depth: depth}, nil
		}
		return p.parseStructInstantiation(t.text)
	default:
		return nil, p.errorf(t.pos, "expected a type, found %s", t)
	}
}

func (p *parser) parseStructInstantiation(name string) (ir.Type, error) {
	var params []ir.TypeParam
	if p.acceptPunct("(") {
		if !p.acceptPunct(")") {
			for {
				arg, err := p.parseTypeArg()
				if err != nil {
					return nil, err
				}
				params = append(params, arg)
				if p.acceptPunct(",") {
					continue
				}
				break
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
	}
	return ir.StructType{Name: ir.StructName(name), Params: params}, nil
}

func (p *parser) parseTypeArg() (ir.TypeParam, error) {
	t := p.lex.peekTok()
	if t.kind == tokLifetime {
		p.lex.next()
		region, err := p.resolveRegion(t.text[1:])
		if err != nil {
			return ir.TypeParam{}, err
		}
		return ir.RegionParam(region), nil
	}
	ty, err := p.parseType()
	if err != nil {
		return ir.TypeParam{}, err
	}
	return ir.TypeParamTy(ty), nil
}

// resolveRegion resolves a lexed lifetime to a bound placeholder if it
// names one of the enclosing struct's own region parameters, otherwise
// to a free region.
func (p *parser) resolveRegion(name string) (ir.Region, error) {
	if depth, ok := boundDepthFor(p.structParams, name); ok {
		for _, sp := range p.structParams {
			if sp.name == name && !sp.region {
				return ir.Region{}, fmt.Errorf("parseir: %s is a type parameter, not a region", name)
			}
		}
		return ir.BoundRegion(depth), nil
	}
	return ir.FreeRegion(ir.RegionName(name)), nil
}

// --- blocks ---

func (p *parser) parseBlockDecl() error {
	if err := p.expectKeyword("block"); err != nil {
		return err
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return err
	}

	var actions []ir.Action
	var successors []ir.BlockName
	for {
		t := p.lex.peekTok()
		if t.kind == tokPunct && t.text == "}" {
			p.lex.next()
			break
		}
		if t.kind == tokIdent && t.text == "goto" {
			p.lex.next()
			if !p.acceptPunct(";") {
				for {
					succ, err := p.expectIdent()
					if err != nil {
						return err
					}
					successors = append(successors, ir.BlockName(succ))
					if p.acceptPunct(",") {
						continue
					}
					break
				}
				if _, err := p.expectPunct(";"); err != nil {
					return err
				}
			}
			if _, err := p.expectPunct("}"); err != nil {
				return err
			}
			break
		}

		action, err := p.parseStmt()
		if err != nil {
			return err
		}
		actions = append(actions, action)
	}

	p.fn.Blocks = append(p.fn.Blocks, ir.BasicBlock{
		Name:       ir.BlockName(name),
		Actions:    actions,
		Successors: successors,
	})
	return nil
}

func (p *parser) parseStmt() (ir.Action, error) {
	var expectErr *string
	if t := p.lex.peekTok(); t.kind == tokExpectError {
		p.lex.next()
		msg := t.text
		expectErr = &msg
	}
	kind, err := p.parseActionKind()
	if err != nil {
		return ir.Action{}, err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return ir.Action{}, err
	}
	return ir.Action{Kind: kind, ExpectError: expectErr}, nil
}

func (p *parser) parseActionKind() (ir.ActionKind, error) {
	t := p.lex.peekTok()
	switch {
	case t.kind == tokIdent && t.text == "constraint":
		p.lex.next()
		sup, err := p.expectLifetime()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		sub, err := p.expectLifetime()
		if err != nil {
			return nil, err
		}
		return ir.ConstraintAction{Constraint: ir.OutlivesConstraint{Sup: ir.RegionName(sup), Sub: ir.RegionName(sub)}}, nil
	case t.kind == tokIdent && t.text == "use":
		p.lex.next()
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ir.UseAction{Path: path}, nil
	case t.kind == tokIdent && t.text == "drop":
		p.lex.next()
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ir.DropAction{Path: path}, nil
	case t.kind == tokIdent && t.text == "storagedead":
		p.lex.next()
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		v, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ir.StorageDeadAction{Var: ir.Variable(v)}, nil
	case t.kind == tokIdent && t.text == "noop":
		p.lex.next()
		return ir.NoopAction{}, nil
	case t.kind == tokIdent:
		dest, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("="); err != nil {
			return nil, err
		}
		return p.parseAssignLike(dest)
	default:
		return nil, p.errorf(t.pos, "expected an action, found %s", t)
	}
}

// parseAssignLike parses the right-hand side of `dest = ...`, which is
// an Init (`use(...)`), a Borrow (`&'r [mut] path`), or a plain Assign.
func (p *parser) parseAssignLike(dest *ir.Path) (ir.ActionKind, error) {
	t := p.lex.peekTok()
	switch {
	case t.kind == tokIdent && t.text == "use":
		p.lex.next()
		if _, err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var sources []*ir.Path
		if !p.acceptPunct(")") {
			for {
				src, err := p.parsePath()
				if err != nil {
					return nil, err
				}
				sources = append(sources, src)
				if p.acceptPunct(",") {
					continue
				}
				break
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		return ir.InitAction{Dest: dest, Sources: sources}, nil
	case t.kind == tokPunct && t.text == "&":
		p.lex.next()
		region, err := p.expectLifetime()
		if err != nil {
			return nil, err
		}
		kind := ir.Shared
		if p.acceptKeyword("mut") {
			kind = ir.Mut
		}
		source, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return ir.BorrowAction{Dest: dest, Region: ir.RegionName(region), Kind: kind, Source: source}, nil
	default:
		source, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return ir.AssignAction{Dest: dest, Source: source}, nil
	}
}

func (p *parser) parsePath() (*ir.Path, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	path := ir.NewVar(ir.Variable(name))
	for p.acceptPunct(".") {
		t := p.lex.next()
		switch {
		case t.kind == tokPunct && t.text == "*":
			path = path.Extend(ir.DerefField)
		case t.kind == tokIdent:
			path = path.Extend(ir.FieldName(t.text))
		default:
			return nil, p.errorf(t.pos, "expected a field name or '*', found %s", t)
		}
	}
	return path, nil
}

// --- assertions ---

func (p *parser) parseAssertDecl() error {
	if err := p.expectKeyword("assert"); err != nil {
		return err
	}
	t := p.lex.peekTok()

	var region ir.RegionName
	var variable ir.Variable
	isRegion := t.kind == tokLifetime
	if isRegion {
		p.lex.next()
		region = ir.RegionName(t.text[1:])
	} else {
		name, err := p.expectIdent()
		if err != nil {
			return err
		}
		variable = ir.Variable(name)
	}

	kw := p.lex.peekTok()
	var assertion ir.Assertion
	switch {
	case isRegion && kw.kind == tokPunct && kw.text == "=":
		p.lex.next()
		if _, err := p.expectPunct("="); err != nil {
			return err
		}
		if _, err := p.expectPunct("{"); err != nil {
			return err
		}
		var points []ir.Point
		if !p.acceptPunct("}") {
			for {
				pt, err := p.parsePoint()
				if err != nil {
					return err
				}
				points = append(points, pt)
				if p.acceptPunct(",") {
					continue
				}
				break
			}
			if _, err := p.expectPunct("}"); err != nil {
				return err
			}
		}
		assertion = ir.RegionEqAssertion{Region: region, Literal: points}
	case isRegion && kw.kind == tokIdent && kw.text == "in":
		p.lex.next()
		pt, err := p.parsePoint()
		if err != nil {
			return err
		}
		assertion = ir.RegionInAssertion{Region: region, Point: pt}
	case isRegion && kw.kind == tokIdent && kw.text == "not_in":
		p.lex.next()
		pt, err := p.parsePoint()
		if err != nil {
			return err
		}
		assertion = ir.RegionNotInAssertion{Region: region, Point: pt}
	case kw.kind == tokIdent && kw.text == "live_at":
		p.lex.next()
		block, err := p.expectIdent()
		if err != nil {
			return err
		}
		if isRegion {
			assertion = ir.RegionLiveAssertion{Region: region, Block: ir.BlockName(block)}
		} else {
			assertion = ir.VarLiveAssertion{Var: variable, Block: ir.BlockName(block)}
		}
	case kw.kind == tokIdent && kw.text == "not_live_at":
		p.lex.next()
		block, err := p.expectIdent()
		if err != nil {
			return err
		}
		if isRegion {
			assertion = ir.RegionNotLiveAssertion{Region: region, Block: ir.BlockName(block)}
		} else {
			assertion = ir.VarNotLiveAssertion{Var: variable, Block: ir.BlockName(block)}
		}
	default:
		return p.errorf(kw.pos, "unrecognized assertion form at %s", kw)
	}

	if _, err := p.expectPunct(";"); err != nil {
		return err
	}
	p.fn.Assertions = append(p.fn.Assertions, assertion)
	return nil
}

func (p *parser) parsePoint() (ir.Point, error) {
	if _, err := p.expectPunct("("); err != nil {
		return ir.Point{}, err
	}
	block, err := p.expectIdent()
	if err != nil {
		return ir.Point{}, err
	}
	if _, err := p.expectPunct("/"); err != nil {
		return ir.Point{}, err
	}
	t := p.lex.next()
	if t.kind != tokInt {
		return ir.Point{}, p.errorf(t.pos, "expected an action index, found %s", t)
	}
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return ir.Point{}, p.errorf(t.pos, "invalid action index %q", t.text)
	}
	if _, err := p.expectPunct(")"); err != nil {
		return ir.Point{}, err
	}
	return ir.Point{Block: ir.BlockName(block), Action: n}, nil
}
