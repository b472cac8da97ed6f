package models

// Participant is the public identity of one session member, as delivered in
// roster snapshots and join notifications.
type Participant struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}
