package model

import "strings"

// CategoryKeywords are the analysis categories that appear verbatim in
// drilling capture filenames.
var CategoryKeywords = []string{
	"薄片鉴定", // thin-section identification
	"三维谱图", // 3D spectrum
	"荧光扫描", // fluorescence scan
	"轻烃谱图", // light hydrocarbon spectrum
	"色谱谱图", // chromatography spectrum
	"热解谱图", // pyrolysis spectrum
}

// SampleTypeVocab maps a canonical sample-type label to the tokens that
// denote it in filenames. Longer tokens are matched first so that
// "壁取心" resolves before "取心".
var SampleTypeVocab = map[string][]string{
	"岩屑": {"岩屑", "钻屑", "岩粉"},
	"岩心": {"岩心", "取心", "岩芯"},
	"壁心": {"壁心", "壁取心", "壁芯"},
	"泥浆": {"泥浆", "循环泥浆", "钻井液"},
	"标样": {"标样", "标样1", "标样2", "标样3"},
}

// SpecialTokens are capture qualifiers that carry meaning but are not
// labels themselves (light mode, chart type, curated marks).
var SpecialTokens = []string{
	"精选", "单偏光", "正交光", "指纹图", "立体图", "等值图", "三维图",
}

// IsCategoryKeyword reports whether a token is a known category keyword.
func IsCategoryKeyword(tok string) bool {
	for _, c := range CategoryKeywords {
		if tok == c {
			return true
		}
	}
	return false
}

// SampleTypeFor returns the canonical sample-type label for a token, if
// the token belongs to the vocabulary.
func SampleTypeFor(tok string) (string, bool) {
	low := strings.ToLower(tok)
	for label, toks := range SampleTypeVocab {
		for _, t := range toks {
			if low == strings.ToLower(t) {
				return label, true
			}
		}
	}
	return "", false
}
