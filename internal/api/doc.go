// Package api 設定 gateway 的 HTTP 路由。
//
// REST 端點在 /api 之下，大樓聊天室的即時連線在 /chat/:buildingId。
// handlers 子套件把請求轉成 service 呼叫，並把結果轉回 JSON 回應。
package api
