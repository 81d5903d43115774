package library

import (
	"strconv"
	"strings"

	"github.com/OpenCircuitKit/kicadedit/pkg/kicad/patch"
)

// PopulateCache ensures the schematic's lib_symbols section carries the
// definition for libID, resolving it from the library files when missing.
// The returned content is unchanged when the definition is already cached.
//
// Only the outer node is renamed to the fully qualified id ("R" becomes
// "Device:R"); unit sub-symbols like "R_0_1" keep their plain names. The
// host program treats a qualified sub-symbol name as a different symbol, so
// getting this wrong corrupts the document without any parse error.
func (r *Resolver) PopulateCache(content, libID, schematicPath string) (string, error) {
	content, cache, err := ensureLibSymbols(content)
	if err != nil {
		return content, err
	}

	if _, cached := patch.LibrarySymbolByName(content, libID); cached {
		return content, nil
	}

	def, err := r.Resolve(libID, schematicPath)
	if err != nil {
		return content, err
	}

	block := renameOuterSymbol(def.Block, def.Name, libID)

	// Indent to sit two levels deep inside lib_symbols.
	indented := "    " + strings.ReplaceAll(block, "\n", "\n    ")

	insertAt := cache.End - 1 // before lib_symbols' closing paren
	return patch.InsertBefore(content, insertAt, "\n"+indented+"\n  "), nil
}

// ensureLibSymbols returns content guaranteed to contain a lib_symbols
// section, and its region.
func ensureLibSymbols(content string) (string, patch.Region, error) {
	if region, ok := patch.LibSymbolsRegion(content); ok {
		return content, region, nil
	}

	idx := patch.InsertionPoint(content)
	content = patch.InsertBefore(content, idx, "(lib_symbols\n  )\n  ")

	region, ok := patch.LibSymbolsRegion(content)
	if !ok {
		return content, patch.Region{}, &NotFoundError{Kind: "library", Name: "lib_symbols"}
	}
	return content, region, nil
}

// renameOuterSymbol qualifies the outermost symbol name of a definition
// block, leaving nested sub-symbol names untouched.
func renameOuterSymbol(block, plainName, libID string) string {
	oldPrefix := `(symbol ` + strconv.Quote(plainName)
	if !strings.HasPrefix(block, oldPrefix) {
		return block
	}
	return `(symbol ` + strconv.Quote(libID) + block[len(oldPrefix):]
}
