package rpc

import "github.com/lattice-io/pubsub-broker/internal/model"

type loginParams struct {
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

type loginResult struct {
	Token string `json:"token"`
}

type topicCreateParams struct {
	Name      string        `json:"name"`
	Retention wireRetention `json:"retention"`
}

type topicGetParams struct {
	ID wireID `json:"id"`
}

type topicGetAllResult struct {
	Topics []wireTopic `json:"topics"`
}

type topicUpdateParams struct {
	ID        wireID        `json:"id"`
	Name      string        `json:"name"`
	Retention wireRetention `json:"retention"`
}

type topicDeleteParams struct {
	ID wireID `json:"id"`
}

type messagePostParams struct {
	TopicID wireID  `json:"topic_id"`
	Content string  `json:"content"`
	Key     *string `json:"key,omitempty"`
}

type messageGetSyncParams struct {
	TopicID wireID `json:"topic_id"`
}

type messageGetSyncResult struct {
	Messages []wireMessage `json:"messages"`
}

type messageSubscribeParams struct {
	TopicID wireID `json:"topic_id"`
}

type messageSubscribeResult struct {
	IteratorID string `json:"iterator_id"`
}

type messageUnsubscribeParams struct {
	TopicID wireID `json:"topic_id"`
}

type messageDeleteParams struct {
	MessageID wireID `json:"message_id"`
}

type historyNextParams struct {
	IteratorID string `json:"iterator_id"`
	Count      int    `json:"count"`
}

type historyNextResult struct {
	Messages []wireMessage `json:"messages"`
}

type historyStopParams struct {
	IteratorID string `json:"iterator_id"`
}

// receivePush is the outbound envelope pushed to a subscriber's receiver
// capability for receiver.receive.
type receivePush struct {
	Message wireMessage `json:"message"`
}

func toWireTopics(topics []model.Topic) []wireTopic {
	out := make([]wireTopic, len(topics))
	for i, t := range topics {
		out[i] = toWireTopic(t)
	}
	return out
}

func toWireMessages(msgs []model.Message) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = toWireMessage(m)
	}
	return out
}
