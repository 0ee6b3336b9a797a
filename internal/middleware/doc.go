// Package middleware 提供 gateway 的 gin 中間件：JWT 驗證與 zap 請求日誌。
package middleware
