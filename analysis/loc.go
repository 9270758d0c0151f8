package analysis

import (
	"strings"

	"github.com/dipongkor/maki/cpp"
)

// TryGetFullSourceLoc tries to render a source position as
// realpath:line:col. The first result reports success, the second is
// the rendered location or a description of which validity check
// failed.
func TryGetFullSourceLoc(files *cpp.FileSet, pos cpp.FilePos) (bool, string) {
	if pos.File == "" && pos.Line == 0 {
		return false, "Invalid SLoc"
	}
	if pos.File == "" {
		return false, "Invalid file ID"
	}
	if files == nil || !files.Known(pos.File) {
		return false, "File without FileEntry"
	}
	real := files.RealPath(pos.File)
	if real == "" {
		return false, "Nameless file"
	}
	if pos.Line <= 0 || pos.Col <= 0 {
		return false, "Invalid File SLoc"
	}
	//line:col are the last two colon delimited segments of the
	//printable form.
	s := pos.String()
	i := strings.LastIndex(s, ":")
	i = strings.LastIndex(s[:i], ":")
	return true, real + s[i:]
}

// IsGlobalInclude checks whether an include directive appeared at
// global scope: the resolved file and the including file must both
// have real paths, the including file must not itself have been
// included locally, and the directive must not fall inside any
// declaration. The second result is the name the caller should record,
// and add to localIncludes when the check fails.
func IsGlobalInclude(
	files *cpp.FileSet,
	rec IncludeRecord,
	localIncludes map[string]bool,
	declRanges []DeclRange,
) (bool, string) {
	// Check that the included file resolved to an actual file
	if rec.Resolved == "" || rec.Err != nil {
		return false, "<null>"
	}

	// Check that the included file actually has a name
	includedRealpath := files.RealPath(rec.Resolved)
	if includedRealpath == "" {
		return false, rec.Resolved
	}

	// Check that the hash location is valid
	if !rec.HashPos.IsValid() {
		return false, includedRealpath
	}

	// Check that the file the file is included in is valid and has a
	// real path
	if !files.Known(rec.HashPos.File) {
		return false, includedRealpath
	}
	includedInRealpath := files.RealPath(rec.HashPos.File)
	if includedInRealpath == "" {
		return false, includedRealpath
	}

	// Check that the file the file is included in is not in turn
	// included in a non-global scope
	if localIncludes[includedInRealpath] {
		return false, includedRealpath
	}

	// Check that the include does not appear within the range of any
	// declaration in the file
	for _, dr := range declRanges {
		if dr.Range.Contains(rec.HashPos) {
			return false, includedRealpath
		}
	}

	// Success
	return true, includedRealpath
}
