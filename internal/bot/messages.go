package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgUnexpectedErr  = `Unexpected error: %s`
	MsgUnknownCommand = "Unknown command. Send /help for usage."
	MsgNotAllowed     = "You are not allowed to use this bot. Ask the admin to add your user ID `%d`."
	MsgStart          = `
		Send a product and its image URLs to get a visual measurement:

		/measure <product_id> <url> [url ...]

		Example:
		/measure P-1001 https://cdn.example.com/p1001/front.jpg https://cdn.example.com/p1001/side.jpg
	`
)

// =============================================================================
// Measurement messages
// =============================================================================

const (
	MsgMeasureUsage      = "Usage: `/measure <product_id> <url> [url ...]`"
	MsgMeasureInProgress = "A measurement is already running for you. Wait for it to finish."
	MsgMeasureStarted    = "Measuring *%s* from %d image(s)..."
)

// =============================================================================
// Admin command messages
// =============================================================================

const (
	MsgAdminOnly          = "Only the admin can use this command."
	MsgAllowUsage         = "Usage: `/allow <user_id>`"
	MsgDenyUsage          = "Usage: `/deny <user_id>`"
	MsgInvalidUserID      = "Invalid user ID. Give a number."
	MsgUserAllowed        = "✅ User `%d` allowed."
	MsgUserDenied         = "🗑 User `%d` removed."
	MsgNoAllowedUsers     = "No allowed users."
	MsgAllowedUsersHeader = "*Allowed users:*\n"
)
