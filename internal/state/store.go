package state

import "sort"

// ResultEntry is one participant's line in a finished match.
type ResultEntry struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Lives        int     `json:"lives"`
	Eliminated   bool    `json:"eliminated"`
	IsWinner     bool    `json:"isWinner"`
	Kills        int     `json:"kills"`
	Deaths       int     `json:"deaths"`
	KDR          float64 `json:"kdr"`
	Disconnected bool    `json:"disconnected"`
	Disqualified bool    `json:"disqualified"`
	Rank         int     `json:"rank"`
}

// Store holds the process-wide room and participant tables. It is owned by
// the loop goroutine and never locked.
type Store struct {
	Rooms        map[string]*Room
	Participants map[string]*Participant

	roomByPlayer map[string]string
}

func NewStore() *Store {
	return &Store{
		Rooms:        make(map[string]*Room),
		Participants: make(map[string]*Participant),
		roomByPlayer: make(map[string]string),
	}
}

// Participant looks up a connected participant.
func (s *Store) Participant(id string) (*Participant, bool) {
	p, ok := s.Participants[id]
	return p, ok
}

// Room looks up a room by code.
func (s *Store) Room(code string) (*Room, bool) {
	r, ok := s.Rooms[code]
	return r, ok
}

// RoomOf returns the room holding id as a member or disconnected stub.
func (s *Store) RoomOf(id string) (*Room, bool) {
	code, ok := s.roomByPlayer[id]
	if !ok {
		return nil, false
	}
	room, ok := s.Rooms[code]
	return room, ok
}

// Bind records that id belongs to code.
func (s *Store) Bind(id, code string) {
	s.roomByPlayer[id] = code
}

// Unbind forgets id's room, but only if it still points at code.
func (s *Store) Unbind(id, code string) {
	if s.roomByPlayer[id] == code {
		delete(s.roomByPlayer, id)
	}
}

// Bound reports the number of player-to-room bindings.
func (s *Store) Bound() int {
	return len(s.roomByPlayer)
}

// RoomCodes snapshots the room key set in sorted order.
func (s *Store) RoomCodes() []string {
	codes := make([]string, 0, len(s.Rooms))
	for code := range s.Rooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ParticipantIDs snapshots the participant key set in sorted order.
func (s *Store) ParticipantIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for id := range s.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MembersOf resolves the connected participants of room in join order.
func (s *Store) MembersOf(room *Room) []*Participant {
	out := make([]*Participant, 0, len(room.Members))
	for _, id := range room.Members {
		if p, ok := s.Participants[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
