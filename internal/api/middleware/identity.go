// identity.go — middleware извлечения идентичности вызывающего.
// Идентичность приходит как opaque-значение заголовка X-Caller-Id
// (верификация токенов выполняется на API Gateway, вне этого сервиса).
// Если заголовок отсутствует — используется "anonymous".
package middleware

import (
	"context"
	"net/http"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyCaller — ключ идентичности вызывающего в контексте запроса.
const ContextKeyCaller contextKey = "caller_id"

// CallerHeader — заголовок с opaque-идентичностью вызывающего.
const CallerHeader = "X-Caller-Id"

// AnonymousCaller — идентичность по умолчанию при отсутствии заголовка.
const AnonymousCaller = "anonymous"

// CallerIdentity возвращает middleware, помещающий идентичность
// вызывающего из заголовка X-Caller-Id в контекст запроса.
func CallerIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.Header.Get(CallerHeader)
			if caller == "" {
				caller = AnonymousCaller
			}
			ctx := context.WithValue(r.Context(), ContextKeyCaller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext возвращает идентичность вызывающего из контекста.
// Если middleware не применялся — возвращает AnonymousCaller.
func CallerFromContext(ctx context.Context) string {
	if caller, ok := ctx.Value(ContextKeyCaller).(string); ok && caller != "" {
		return caller
	}
	return AnonymousCaller
}
