package domain

// DialogInfo is a dialog row as it appears in account reports.
type DialogInfo struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Type              string `json:"type"`
	Username          string `json:"username,omitempty"`
	ParticipantsCount int    `json:"participants_count"`
	Megagroup         bool   `json:"is_megagroup"`
	Broadcast         bool   `json:"is_broadcast"`
	Creator           bool   `json:"creator"`
	AdminRights       bool   `json:"admin_rights"`
	LastActivityUnix  int64  `json:"last_activity_unix,omitempty"`
}

// ContactInfo is a contact row in the contacts report.
type ContactInfo struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Bot       bool   `json:"bot"`
	Verified  bool   `json:"verified"`
	Premium   bool   `json:"premium"`
}

// Message is an exported chat message.
type Message struct {
	ID            int64  `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	SenderID      int64  `json:"sender_id"`
	SenderDisplay string `json:"sender_display"`
	Text          string `json:"text"`
	MediaType     string `json:"media_type,omitempty"`
	Views         int    `json:"views,omitempty"`
	Forwards      int    `json:"forwards,omitempty"`
	IsOutgoing    bool   `json:"is_outgoing"`
}

// Participant is an exported group member.
type Participant struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Bot       bool   `json:"bot"`
	Admin     bool   `json:"admin"`
	Creator   bool   `json:"creator"`
}

// ChatExport bundles everything fetched for one chat backup.
type ChatExport struct {
	ChatID       int64         `json:"chat_id"`
	Title        string        `json:"title"`
	ExportedUnix int64         `json:"exported_unix"`
	Messages     []Message     `json:"messages,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
}

// MediaStats counts downloaded media per type.
type MediaStats struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
	Failed int            `json:"failed"`
}

// AuthStatus reflects the current session state.
type AuthStatus struct {
	Authorized  bool
	UserID      int64
	UserDisplay string
	Username    string
}
