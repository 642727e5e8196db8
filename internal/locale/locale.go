package locale

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	LanguageEnglish = "en"
	LanguageChinese = "zh"
)

// Default 是未指定语言时使用的语言
const Default = LanguageEnglish

type Preference struct {
	Language string
	Locale   string
}

func NormalizeLanguage(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "zh") || trimmed == "cn" {
		return LanguageChinese
	}
	if strings.HasPrefix(trimmed, "en") {
		return LanguageEnglish
	}
	return ""
}

var (
	englishBase, _ = language.English.Base()
	chineseBase, _ = language.Chinese.Base()
)

// LanguageFromAcceptLanguage 按 q 值从高到低返回首个可识别的语言，
// 头部无法解析时退回按出现顺序匹配
func LanguageFromAcceptLanguage(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}

	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return firstListedLanguage(header)
	}
	for _, tag := range tags {
		switch base, _ := tag.Base(); base {
		case chineseBase:
			return LanguageChinese
		case englishBase:
			return LanguageEnglish
		}
	}
	return ""
}

func firstListedLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(part, ";")
		if lang := NormalizeLanguage(tag); lang != "" {
			return lang
		}
	}
	return ""
}

func PreferenceForLanguage(language string) Preference {
	if NormalizeLanguage(language) == LanguageChinese {
		return Preference{Language: LanguageChinese, Locale: "zh_CN"}
	}
	return Preference{Language: LanguageEnglish, Locale: "en_US"}
}
