package parse

import (
	"fmt"
	"strings"

	"github.com/dipongkor/maki/cpp"
)

type CType interface {
	GetSize() int
	GetAlign() int
	//String renders the desugared, unqualified canonical C spelling.
	String() string
}

type PrimitiveKind int

const (
	Void PrimitiveKind = iota // the void type
	Bool
	Char
	Short
	Int
	Long
	LLong
	Float
	Double
	LDouble
)

type Primitive struct {
	Kind     PrimitiveKind
	Size     int
	Align    int
	Unsigned bool
}

func (p *Primitive) GetSize() int  { return p.Size }
func (p *Primitive) GetAlign() int { return p.Align }

func (p *Primitive) String() string {
	var name string
	switch p.Kind {
	case Void:
		name = "void"
	case Bool:
		return "_Bool"
	case Char:
		name = "char"
	case Short:
		name = "short"
	case Int:
		name = "int"
	case Long:
		name = "long"
	case LLong:
		name = "long long"
	case Float:
		name = "float"
	case Double:
		name = "double"
	case LDouble:
		name = "long double"
	default:
		name = "int"
	}
	if p.Unsigned {
		return "unsigned " + name
	}
	return name
}

type Array struct {
	MemberType CType
	Dim        int
}

func (a *Array) GetSize() int  { return a.MemberType.GetSize() * a.Dim }
func (a *Array) GetAlign() int { return a.MemberType.GetAlign() }

func (a *Array) String() string {
	if a.Dim == 0 {
		return fmt.Sprintf("%s[]", a.MemberType)
	}
	return fmt.Sprintf("%s[%d]", a.MemberType, a.Dim)
}

type Ptr struct {
	PointsTo CType
}

func (p *Ptr) GetSize() int  { return 8 }
func (p *Ptr) GetAlign() int { return 8 }

func (p *Ptr) String() string {
	return p.PointsTo.String() + " *"
}

type StructField struct {
	Name string
	Type CType
}

// Struct or union tag type.
type Struct struct {
	Fields  []StructField
	IsUnion bool
	//Tag name, empty for anonymous types.
	TagName string
	//The token spelling the tag, nil for anonymous types.
	NameTok *cpp.Token
	//True when the tag is declared inside a function rather than at
	//translation unit scope.
	Local      bool
	Incomplete bool
}

func (s *Struct) GetSize() int  { return 8 }
func (s *Struct) GetAlign() int { return 8 }

func (s *Struct) String() string {
	kw := "struct"
	if s.IsUnion {
		kw = "union"
	}
	if s.TagName == "" {
		return kw + " (anonymous)"
	}
	return kw + " " + s.TagName
}

func (s *Struct) fieldType(name string) CType {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return nil
}

// EnumType is an enum tag type.
type EnumType struct {
	TagName string
	NameTok *cpp.Token
	Local   bool
}

func (e *EnumType) GetSize() int  { return 4 }
func (e *EnumType) GetAlign() int { return 4 }

func (e *EnumType) String() string {
	if e.TagName == "" {
		return "enum (anonymous)"
	}
	return "enum " + e.TagName
}

type FunctionType struct {
	RetType  CType
	ArgTypes []CType
	ArgNames []string
	IsVarArg bool
}

func (f *FunctionType) GetSize() int  { panic("internal error") }
func (f *FunctionType) GetAlign() int { panic("internal error") }

func (f *FunctionType) String() string {
	var args []string
	for _, a := range f.ArgTypes {
		if a == nil {
			args = append(args, "int")
			continue
		}
		args = append(args, a.String())
	}
	ret := "int"
	if f.RetType != nil {
		ret = f.RetType.String()
	}
	return fmt.Sprintf("%s (%s)", ret, strings.Join(args, ", "))
}

// ForwardedType is a typedef name for another type.
type ForwardedType struct {
	Name    string
	NameTok *cpp.Token
	Local   bool
	Type    CType
}

func (f *ForwardedType) GetSize() int  { return f.Type.GetSize() }
func (f *ForwardedType) GetAlign() int { return f.Type.GetAlign() }

func (f *ForwardedType) String() string {
	if f.Type == nil {
		return f.Name
	}
	return f.Type.String()
}

// All the primitive C types.

// Misc
var CVoid *Primitive = &Primitive{Void, 0, 0, false}

// Signed
var CChar *Primitive = &Primitive{Char, 1, 1, false}
var CShort *Primitive = &Primitive{Short, 2, 2, false}
var CInt *Primitive = &Primitive{Int, 4, 4, false}
var CLong *Primitive = &Primitive{Long, 8, 8, false}
var CLLong *Primitive = &Primitive{LLong, 8, 8, false}

// Unsigned
var CBool *Primitive = &Primitive{Bool, 1, 1, true}
var CUChar *Primitive = &Primitive{Char, 1, 1, true}
var CUShort *Primitive = &Primitive{Short, 2, 2, true}
var CUInt *Primitive = &Primitive{Int, 4, 4, true}
var CULong *Primitive = &Primitive{Long, 8, 8, true}
var CULLong *Primitive = &Primitive{LLong, 8, 8, true}

// Floats
var CFloat *Primitive = &Primitive{Float, 4, 4, false}
var CDouble *Primitive = &Primitive{Double, 8, 8, false}
var CLDouble *Primitive = &Primitive{LDouble, 8, 8, false}

// Canonical unwraps typedef layers, yielding the underlying type.
func Canonical(t CType) CType {
	for {
		f, ok := t.(*ForwardedType)
		if !ok || f.Type == nil {
			return t
		}
		t = f.Type
	}
}

func IsPtrType(t CType) bool {
	_, ok := Canonical(t).(*Ptr)
	return ok
}

func IsArrayType(t CType) bool {
	_, ok := Canonical(t).(*Array)
	return ok
}

func IsIntType(t CType) bool {
	prim, ok := Canonical(t).(*Primitive)
	if !ok {
		_, isEnum := Canonical(t).(*EnumType)
		return isEnum
	}
	switch prim.Kind {
	case Bool, Char, Short, Int, Long, LLong:
		return true
	default:
		return false
	}
}

func IsFloatType(t CType) bool {
	prim, ok := Canonical(t).(*Primitive)
	if !ok {
		return false
	}
	switch prim.Kind {
	case Float, Double, LDouble:
		return true
	default:
		return false
	}
}

func IsVoidType(t CType) bool {
	prim, ok := Canonical(t).(*Primitive)
	return ok && prim.Kind == Void
}

func IsScalarType(t CType) bool {
	return IsPtrType(t) || IsIntType(t) || IsFloatType(t)
}

// arithRank orders arithmetic types for the usual conversions.
func arithRank(p *Primitive) int {
	r := 0
	switch p.Kind {
	case Bool:
		r = 1
	case Char:
		r = 2
	case Short:
		r = 3
	case Int:
		r = 4
	case Long:
		r = 5
	case LLong:
		r = 6
	case Float:
		r = 7
	case Double:
		r = 8
	case LDouble:
		r = 9
	}
	r *= 2
	if p.Unsigned {
		r += 1
	}
	return r
}

// typesEqual compares two types structurally after canonicalization.
func typesEqual(a, b CType) bool {
	if a == nil || b == nil {
		return a == b
	}
	a = Canonical(a)
	b = Canonical(b)
	switch at := a.(type) {
	case *Primitive:
		bt, ok := b.(*Primitive)
		return ok && at.Kind == bt.Kind && at.Unsigned == bt.Unsigned
	case *Ptr:
		bt, ok := b.(*Ptr)
		return ok && typesEqual(at.PointsTo, bt.PointsTo)
	case *Array:
		bt, ok := b.(*Array)
		return ok && at.Dim == bt.Dim && typesEqual(at.MemberType, bt.MemberType)
	default:
		return a == b
	}
}
