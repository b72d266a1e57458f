package types

// Client -> Server
//
//	setNickname      {nickname}
//	addTeam          {name, budget}
//	assignCaptain    {nickname, teamName}
//	shuffleAndPrepare
//	startRaffleRound
//	startNextAuction
//	endAuction
//	placeBid         {amount}
//	assignItemToTeam {teamName}
//	resetAuction
//	requestUserList
const (
	KindSetNickname       = "setNickname"
	KindAddTeam           = "addTeam"
	KindAssignCaptain     = "assignCaptain"
	KindShuffleAndPrepare = "shuffleAndPrepare"
	KindStartRaffleRound  = "startRaffleRound"
	KindStartNextAuction  = "startNextAuction"
	KindEndAuction        = "endAuction"
	KindPlaceBid          = "placeBid"
	KindAssignItemToTeam  = "assignItemToTeam"
	KindResetAuction      = "resetAuction"
	KindRequestUserList   = "requestUserList"
)

// ClientMessage is the single inbound frame shape. Which fields matter
// depends on Type.
type ClientMessage struct {
	Type     string `json:"type"`
	Nickname string `json:"nickname,omitempty"`
	Name     string `json:"name,omitempty"`
	Budget   int    `json:"budget,omitempty"`
	TeamName string `json:"teamName,omitempty"`
	Amount   int    `json:"amount,omitempty"`
}

// Payload is one outbound variant. Kind becomes the frame's type tag.
type Payload interface {
	Kind() string
}

type ServerMessage struct {
	Type string  `json:"type"`
	Data Payload `json:"data"`
}

func Envelope(p Payload) ServerMessage {
	return ServerMessage{Type: p.Kind(), Data: p}
}
