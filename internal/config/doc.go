// Package config loads and validates the bot configuration.
//
// Configuration is YAML with ${VAR} environment expansion, so credentials
// stay out of the file:
//
//	telegram:
//	  token: "${TG_BOT_API_KEY}"
//	openai:
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o-mini"
//	  assistants:
//	    fact: "asst_..."
//	    chat: "asst_..."
//	    quiz: "asst_..."
//	  poll_interval: "1s"
//	  poll_timeout: "2m"
//	  retry:
//	    max_attempts: 5
//	    base_delay: "1s"
//	database:
//	  path: "storage/sessions.db"
//	logging:
//	  level: "info"
//	  format: "text"
//
// Missing credentials or assistant IDs fail Load at startup; nothing is
// recoverable per-turn, so the daemon refuses to start instead.
package config
