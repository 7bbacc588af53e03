package models

import "time"

type SeatCategory string

const (
	SeatStandard SeatCategory = "STANDARD"
	SeatVIP      SeatCategory = "VIP"
	SeatCouple   SeatCategory = "COUPLE"
)

type Seat struct {
	SeatID   string       `json:"seat_id"`
	RoomID   string       `json:"room_id"`
	Row      string       `json:"row"`
	Column   int          `json:"column"`
	Label    string       `json:"label"`
	Category SeatCategory `json:"category"`
	Price    int64        `json:"price"`
}

type Showtime struct {
	ShowtimeID string    `json:"showtime_id"`
	MovieID    string    `json:"movie_id"`
	MovieTitle string    `json:"movie_title"`
	RoomID     string    `json:"room_id"`
	CinemaID   string    `json:"cinema_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	BasePrice  int64     `json:"base_price"`
}
