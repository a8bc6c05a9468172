package production

// Chat returns the retained chat messages, oldest first.
func (s *State) Chat() []ChatMessage {
	return append(make([]ChatMessage, 0, len(s.chat)), s.chat...)
}

// SubmitChat appends a message and drops the oldest entries beyond MaxChatMessages.
func (s *State) SubmitChat(author Author, rawText string) (ChatMessage, error) {
	text, err := validateText(opSubmitChat, rawText)
	if err != nil {
		return ChatMessage{}, err
	}
	id, err := s.newID(opSubmitChat)
	if err != nil {
		return ChatMessage{}, err
	}
	message := ChatMessage{
		ID:              id,
		AuthorName:      author.Name,
		AuthorSessionID: author.SessionID,
		Text:            text,
		CreatedAt:       s.now(),
	}
	s.chat = append(s.chat, message)
	if overflow := len(s.chat) - MaxChatMessages; overflow > 0 {
		s.chat = append(s.chat[:0], s.chat[overflow:]...)
	}
	return message, nil
}
