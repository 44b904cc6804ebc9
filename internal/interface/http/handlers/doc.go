// Package handlers contains the HTTP handlers of the bridge.
//
// # Telegram webhook
//
// TelegramWebhook decodes Telegram updates and hands them to the bot:
//
//	mux.Handle("/api/telegram/webhook", handlers.NewTelegramWebhook(bot, log))
//
// GET answers a status document, POST always answers {"ok":true} once the
// update decodes.
//
// # Bridge endpoints
//
// BridgeHandlers serve /api/sync/user, /api/sync/test-result and
// /api/sync/telegram-link. Every request must carry
// "Authorization: Bearer <BRIDGE_SECRET>"; the check runs before the method
// check. Errors are written as {"error": "..."} with:
//
//	401 Unauthorized        wrong or missing token
//	405 Method not allowed  anything but POST
//	400 Unknown action      unrecognized "action"
//	404 <message>           referenced user missing
//	500 <message>           everything else, including "missing field: <path>"
//
// # Health checks
//
// A failing Critical check makes /health answer 503; a failing Degraded
// check only marks the report "degraded".
//
//	health := handlers.NewHealthRegistry(version, timeout)
//	health.Register("postgres", handlers.Critical, handlers.PingCheck(conn))
//	health.Register("primary_backend", handlers.Degraded, backendClient.Available)
package handlers
