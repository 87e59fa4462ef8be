package entities

// Guild is the per-guild configuration record. It is the configuration
// provider for the ticket lifecycle; nothing reads guild settings from
// anywhere else once the process is running.
type Guild struct {
	// ID is the ID of the guild.
	ID string `json:"id" bson:"id"`

	// Ticketing is the ticketing configuration.
	Ticketing TicketingConfig `json:"ticketing" bson:"ticketing"`
}
