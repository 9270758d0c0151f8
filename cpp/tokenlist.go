package cpp

import "container/list"

type tokenList struct {
	l *list.List
}

func newTokenList() *tokenList {
	return &tokenList{list.New()}
}

func tokenListFromSlice(toks []*Token) *tokenList {
	tl := newTokenList()
	for _, t := range toks {
		tl.append(t)
	}
	return tl
}

func (tl *tokenList) isEmpty() bool {
	return tl.l.Len() == 0
}

func (tl *tokenList) popFront() *Token {
	if tl.isEmpty() {
		panic("internal error")
	}
	fronte := tl.l.Front()
	ret := fronte.Value.(*Token)
	tl.l.Remove(fronte)
	return ret
}

func (tl *tokenList) append(tok *Token) {
	tl.l.PushBack(tok)
}

func (tl *tokenList) appendList(toAdd *tokenList) {
	l := toAdd.l
	for e := l.Front(); e != nil; e = e.Next() {
		tl.l.PushBack(e.Value)
	}
}

func (tl *tokenList) prepend(tok *Token) {
	tl.l.PushFront(tok)
}

func (tl *tokenList) prependList(toAdd *tokenList) {
	l := toAdd.l
	for e := l.Back(); e != nil; e = e.Prev() {
		tl.l.PushFront(e.Value)
	}
}

func (tl *tokenList) front() *list.Element {
	return tl.l.Front()
}

func (tl *tokenList) setHideSets(hs *hideset) {
	for e := tl.l.Front(); e != nil; e = e.Next() {
		e.Value.(*Token).hs = hs
	}
}

func (tl *tokenList) toSlice() []*Token {
	ret := make([]*Token, 0, tl.l.Len())
	for e := tl.l.Front(); e != nil; e = e.Next() {
		ret = append(ret, e.Value.(*Token))
	}
	return ret
}
