package models

import "time"

// BarEvent announces that a bar of the given timeframe has closed.
type BarEvent struct {
	Symbol    string
	TimeFrame TimeFrame
	Time      time.Time
}

// TickEvent is a price update. Ticks only drive new-bar detection.
type TickEvent struct {
	Symbol string
	Price  float64
	Time   time.Time
}

// Channel is an alert delivery channel; it is part of the notification store key.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSound Channel = "SND"
)

// Alert is a formatted notification handed to a delivery channel.
type Alert struct {
	Channel   Channel   `json:"channel"`
	Symbol    string    `json:"symbol"`
	TimeFrame TimeFrame `json:"timeframe"`
	Name      string    `json:"name"`
	Value     int       `json:"value"`
	Subject   string    `json:"subject"`
	Sound     string    `json:"sound,omitempty"`
	At        time.Time `json:"at"`
}
