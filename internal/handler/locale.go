package handler

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/locale"
	"go.uber.org/zap"
)

const (
	localeContextKey   = "__request_locale"
	sessionLanguageKey = "language"
)

type languagePayload struct {
	Language string `json:"language"`
}

// LocaleMiddleware resolves request language and sets headers for downstream caching.
func (a *API) LocaleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		pref := a.requestLocale(c)
		c.Header("Content-Language", pref.Language)
		appendVaryHeader(c, "Accept-Language", "Cookie")
		c.Next()
	}
}

// SetLanguagePreference 把语言偏好写入 cookie 会话
func (a *API) SetLanguagePreference(c *gin.Context) {
	var payload languagePayload
	if !bindJSON(c, &payload, "invalid request body") {
		return
	}

	language := locale.NormalizeLanguage(payload.Language)
	if language == "" {
		respondError(c, http.StatusBadRequest, "unsupported language")
		return
	}

	session, ok := requestSession(c)
	if !ok {
		respondError(c, http.StatusInternalServerError, "session unavailable")
		return
	}
	session.Set(sessionLanguageKey, language)
	if err := session.Save(); err != nil {
		a.logger.Error("save language preference failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to save preference")
		return
	}

	c.Set(localeContextKey, locale.PreferenceForLanguage(language))
	c.JSON(http.StatusOK, gin.H{"language": language})
}

func (a *API) requestLocale(c *gin.Context) locale.Preference {
	if cached, exists := c.Get(localeContextKey); exists {
		if pref, ok := cached.(locale.Preference); ok {
			return pref
		}
	}
	pref := locale.PreferenceForLanguage(a.resolveLanguage(c))
	c.Set(localeContextKey, pref)
	return pref
}

// resolveLanguage 依次检查 ?lang、会话、Accept-Language，最后回退到默认语言
func (a *API) resolveLanguage(c *gin.Context) string {
	if override := locale.NormalizeLanguage(c.Query("lang")); override != "" {
		return override
	}
	if stored := readSessionLanguage(c); stored != "" {
		return stored
	}
	if fromHeader := locale.LanguageFromAcceptLanguage(c.GetHeader("Accept-Language")); fromHeader != "" {
		return fromHeader
	}
	return a.defaultLanguage
}

func requestSession(c *gin.Context) (sessions.Session, bool) {
	if _, exists := c.Get(sessions.DefaultKey); !exists {
		return nil, false
	}
	return sessions.Default(c), true
}

func readSessionLanguage(c *gin.Context) string {
	session, ok := requestSession(c)
	if !ok {
		return ""
	}
	value, _ := session.Get(sessionLanguageKey).(string)
	return locale.NormalizeLanguage(value)
}

func appendVaryHeader(c *gin.Context, headers ...string) {
	existing := c.Writer.Header().Get("Vary")
	seen := make(map[string]struct{})
	order := make([]string, 0, len(headers))
	for _, token := range append(strings.Split(existing, ","), headers...) {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		order = append(order, trimmed)
	}
	if len(order) > 0 {
		c.Header("Vary", strings.Join(order, ", "))
	}
}
