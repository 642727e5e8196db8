package locale

import "testing"

func TestNormalizeLanguage(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "zh", want: LanguageChinese},
		{input: "zh-CN", want: LanguageChinese},
		{input: "ZH_hans", want: LanguageChinese},
		{input: "en", want: LanguageEnglish},
		{input: "en-US", want: LanguageEnglish},
		{input: "fr", want: ""},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := NormalizeLanguage(tc.input); got != tc.want {
			t.Fatalf("NormalizeLanguage(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestLanguageFromAcceptLanguage(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "zh-CN,zh;q=0.9", want: LanguageChinese},
		{input: "en-US,en;q=0.9", want: LanguageEnglish},
		{input: "fr-FR,zh;q=0.8,en;q=0.5", want: LanguageChinese},
		{input: "en;q=0.5,zh-TW;q=0.9", want: LanguageChinese},
		{input: "zh-Hant-HK", want: LanguageChinese},
		{input: "fr-FR,fr;q=0.9", want: ""},
		{input: "en-US;q=abc, zh", want: LanguageEnglish},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := LanguageFromAcceptLanguage(tc.input); got != tc.want {
			t.Fatalf("LanguageFromAcceptLanguage(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestPickDefaultsToEnglish(t *testing.T) {
	if got := Pick("", "hello", "你好"); got != "hello" {
		t.Fatalf("expected english default, got %q", got)
	}
	if got := Pick("zh-CN", "hello", "你好"); got != "你好" {
		t.Fatalf("expected chinese, got %q", got)
	}
	if got := Pick("zh", "hello", ""); got != "hello" {
		t.Fatalf("expected english fallback, got %q", got)
	}
}

func TestPreferenceForLanguage(t *testing.T) {
	if pref := PreferenceForLanguage("zh"); pref.Locale != "zh_CN" {
		t.Fatalf("unexpected chinese preference: %+v", pref)
	}
	if pref := PreferenceForLanguage("de"); pref.Language != LanguageEnglish {
		t.Fatalf("expected english fallback, got %+v", pref)
	}
}
