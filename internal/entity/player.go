package entity

type Player struct {
	ID   string `json:"playerId"`
	Name string `json:"name"`
	Wins int    `json:"wins"`
}

// PlayerSummary is the part of a player shown to an opponent.
type PlayerSummary struct {
	ID   string `json:"playerId"`
	Name string `json:"name"`
}

func (that *Player) Summary() *PlayerSummary {
	if that == nil {
		return nil
	}

	return &PlayerSummary{ID: that.ID, Name: that.Name}
}

// WinRecord - number of finished games a player has won.
type WinRecord struct {
	PlayerName string `json:"playerName"`
	Wins       int    `json:"wins"`
}
