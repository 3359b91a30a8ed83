package zstring

import "github.com/ifzm/mxyzptlk/zcore"

// DefaultUnicodeTranslationTable is the Standard's default mapping
// from the optional extended ZSCII range (155-251) to Unicode, used
// whenever a story doesn't supply its own via the header extension
// table (word 3 of that table, S6).
var DefaultUnicodeTranslationTable = map[rune]uint8{
	'ä': 155, 'ö': 156, 'ü': 157, 'Ä': 158, 'Ö': 159, 'Ü': 160, 'ß': 161,
	'»': 162, '«': 163, 'ë': 164, 'ï': 165, 'ÿ': 166, 'Ë': 167, 'Ï': 168,
	'á': 169, 'é': 170, 'í': 171, 'ó': 172, 'ú': 173, 'ý': 174, 'Á': 175,
	'É': 176, 'Í': 177, 'Ó': 178, 'Ú': 179, 'Ý': 180, 'à': 181, 'è': 182,
	'ì': 183, 'ò': 184, 'ù': 185, 'À': 186, 'È': 187, 'Ì': 188, 'Ò': 189,
	'Ù': 190, 'â': 191, 'ê': 192, 'î': 193, 'ô': 194, 'û': 195, 'Â': 196,
	'Ê': 197, 'Î': 198, 'Ô': 199, 'Û': 200, 'å': 201, 'Å': 202, 'ø': 203,
	'Ø': 204, 'ã': 205, 'ñ': 206, 'õ': 207, 'Ã': 208, 'Ñ': 209, 'Õ': 210,
	'æ': 211, 'Æ': 212, 'ç': 213, 'Ç': 214, 'þ': 215, 'ð': 216, 'Þ': 217,
	'Ð': 218, '£': 219, 'œ': 220, 'Œ': 221, '¡': 222, '¿': 223,
}

func unicodeTable(mem *zcore.Memory) map[rune]uint8 {
	tableAddr := mem.ExtensionTableEntry(3)
	if tableAddr == 0 {
		return DefaultUnicodeTranslationTable
	}
	return parseUnicodeTranslationTable(mem, tableAddr)
}

// ZsciiToUnicode translates an extended ZSCII code (155-251) to a rune.
func ZsciiToUnicode(zchr uint8, mem *zcore.Memory) (rune, bool) {
	for r, ix := range unicodeTable(mem) {
		if ix == zchr {
			return r, true
		}
	}
	return 0, false
}

// UnicodeToZscii is the inverse mapping, from a rune to its extended
// ZSCII code.
func UnicodeToZscii(r rune, mem *zcore.Memory) (uint8, bool) {
	zchr, ok := unicodeTable(mem)[r]
	return zchr, ok
}

func parseUnicodeTranslationTable(mem *zcore.Memory, tableAddr uint16) map[rune]uint8 {
	result := make(map[rune]uint8)
	count := mem.MustReadByte(uint32(tableAddr))
	start := uint32(tableAddr) + 1
	for i := uint32(0); i < uint32(count); i++ {
		result[rune(mem.MustReadWord(start+i*2))] = uint8(i + 155)
	}
	return result
}
