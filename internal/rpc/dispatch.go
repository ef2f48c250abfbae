package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lattice-io/pubsub-broker/internal/broker"
)

func (c *connection) dispatch(ctx context.Context, req Request) Reply {
	start := time.Now()
	reply := c.dispatchMethod(ctx, req)
	c.metrics.RPCLatencySeconds.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if reply.Error != nil {
		c.metrics.RPCErrorsTotal.WithLabelValues(req.Method, reply.Error.Kind).Inc()
	}
	return reply
}

func (c *connection) dispatchMethod(ctx context.Context, req Request) Reply {
	switch req.Method {
	case "auth.login":
		return c.handleLogin(req)
	case "auth.logout":
		c.auth.Logout(c.peerAddr)
		return Reply{ID: req.ID}
	case "topic.create":
		return c.handleTopicCreate(req)
	case "topic.get":
		return c.handleTopicGet(req)
	case "topic.get_all":
		return c.handleTopicGetAll(req)
	case "topic.update":
		return c.handleTopicUpdate(req)
	case "topic.delete":
		return c.handleTopicDelete(req)
	case "message.post":
		return c.handleMessagePost(req)
	case "message.get_messages_sync":
		return c.handleMessageGetSync(req)
	case "message.subscribe":
		return c.handleMessageSubscribe(ctx, req)
	case "message.unsubscribe":
		return c.handleMessageUnsubscribe(req)
	case "message.delete":
		return c.handleMessageDelete(req)
	case "history.next":
		return c.handleHistoryNext(req)
	case "history.stop":
		return c.handleHistoryStop(req)
	default:
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindUnimplemented, Message: "unknown method " + req.Method})
	}
}

func asBrokerError(err error) *broker.Error {
	if be, ok := err.(*broker.Error); ok {
		return be
	}
	return &broker.Error{Kind: broker.KindTransportFailure, Message: err.Error()}
}

func (c *connection) handleLogin(req Request) Reply {
	var params loginParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}

	if params.Token != "" {
		username, err := c.auth.LoginWithToken(c.peerAddr, params.Token)
		if err != nil {
			return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindNotAuthenticated, Message: err.Error()})
		}
		result, _ := json.Marshal(loginResult{Token: params.Token})
		_ = username
		return Reply{ID: req.ID, Result: result}
	}

	token, err := c.auth.Login(c.peerAddr, params.Username)
	if err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	result, _ := json.Marshal(loginResult{Token: token})
	return Reply{ID: req.ID, Result: result}
}

func (c *connection) handleTopicCreate(req Request) Reply {
	var params topicCreateParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	topic, err := c.topics.Create(c.peerAddr, params.Name, fromWireRetention(params.Retention))
	if err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	result, _ := json.Marshal(toWireTopic(topic))
	return Reply{ID: req.ID, Result: result}
}

func (c *connection) handleTopicGet(req Request) Reply {
	var params topicGetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	topic, err := c.topics.Get(c.peerAddr, fromWireID(params.ID))
	if err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	result, _ := json.Marshal(toWireTopic(topic))
	return Reply{ID: req.ID, Result: result}
}

func (c *connection) handleTopicGetAll(req Request) Reply {
	topics, err := c.topics.GetAll(c.peerAddr)
	if err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	result, _ := json.Marshal(topicGetAllResult{Topics: toWireTopics(topics)})
	return Reply{ID: req.ID, Result: result}
}

func (c *connection) handleTopicUpdate(req Request) Reply {
	var params topicUpdateParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	topic, err := c.topics.Update(c.peerAddr, fromWireID(params.ID), params.Name, fromWireRetention(params.Retention))
	if err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	result, _ := json.Marshal(toWireTopic(topic))
	return Reply{ID: req.ID, Result: result}
}

func (c *connection) handleTopicDelete(req Request) Reply {
	var params topicDeleteParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	if err := c.topics.Delete(c.peerAddr, fromWireID(params.ID)); err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	return Reply{ID: req.ID}
}

func (c *connection) handleMessagePost(req Request) Reply {
	var params messagePostParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	msg, err := c.message.Post(c.peerAddr, fromWireID(params.TopicID), params.Content, params.Key)
	if err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	c.metrics.MessagesAppended.Inc()
	result, _ := json.Marshal(toWireMessage(msg))
	return Reply{ID: req.ID, Result: result}
}

func (c *connection) handleMessageGetSync(req Request) Reply {
	var params messageGetSyncParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	msgs, err := c.message.GetMessagesSync(c.peerAddr, fromWireID(params.TopicID))
	if err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	result, _ := json.Marshal(messageGetSyncResult{Messages: toWireMessages(msgs)})
	return Reply{ID: req.ID, Result: result}
}

func (c *connection) handleMessageSubscribe(ctx context.Context, req Request) Reply {
	var params messageSubscribeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	history, err := c.message.Subscribe(c.peerAddr, fromWireID(params.TopicID), c)
	if err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	c.metrics.SubscriptionsActive.Inc()
	iterID := c.registerIterator(history)
	result, _ := json.Marshal(messageSubscribeResult{IteratorID: iterID})
	return Reply{ID: req.ID, Result: result}
}

func (c *connection) handleMessageUnsubscribe(req Request) Reply {
	var params messageUnsubscribeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	if err := c.message.Unsubscribe(c.peerAddr, fromWireID(params.TopicID), c); err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	c.metrics.SubscriptionsActive.Dec()
	return Reply{ID: req.ID}
}

func (c *connection) handleMessageDelete(req Request) Reply {
	var params messageDeleteParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	if err := c.message.Delete(c.peerAddr, fromWireID(params.MessageID)); err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	return Reply{ID: req.ID}
}

func (c *connection) handleHistoryNext(req Request) Reply {
	var params historyNextParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	it, ok := c.iterator(params.IteratorID)
	if !ok {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindIteratorStopped, Message: "unknown iterator"})
	}
	msgs, err := it.Next(params.Count)
	if err != nil {
		return c.writeError(req.ID, req.Method, asBrokerError(err))
	}
	result, _ := json.Marshal(historyNextResult{Messages: toWireMessages(msgs)})
	return Reply{ID: req.ID, Result: result}
}

func (c *connection) handleHistoryStop(req Request) Reply {
	var params historyStopParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return c.writeError(req.ID, req.Method, &broker.Error{Kind: broker.KindInvalidContent, Message: "bad params"})
	}
	if it, ok := c.iterator(params.IteratorID); ok {
		it.Stop()
	}
	return Reply{ID: req.ID}
}
