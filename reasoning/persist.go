package reasoning

import "encoding/json"

// EncodeSession renders a Session as the opaque bytes
// persistence.StatePersistence stores and retrieves by session ID. The
// core itself never calls this; it exists for hosts that wire a
// StatePersistence collaborator in to resume a session across restarts.
func EncodeSession(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSession is the inverse of EncodeSession.
func DecodeSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
