package transport

import (
	"container/list"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// DefaultTopic is the topic tag events are published to, under the prefix.
const DefaultTopic = "tags"

// MessageHandler is called for each message received on a subscription.
type MessageHandler func(topic string, payload []byte)

// Broker wraps an MQTT client with a topic prefix.
type Broker struct {
	Client      paho.Client
	TopicPrefix string

	subsLock     sync.RWMutex
	subs         map[string]*list.List
	wildcardSubs map[string]*list.List
}

// Subscription is a registered MessageHandler.
type Subscription struct {
	broker   *Broker
	elm      *list.Element
	topic    string
	wildcard bool
	handler  MessageHandler
}

// MatchTopic matches topic against an MQTT filter with + and # wildcards.
func MatchTopic(topic, filter string) bool {
	levels, patterns := strings.Split(topic, "/"), strings.Split(filter, "/")
	for n, pattern := range patterns {
		if pattern == "#" && n+1 == len(patterns) {
			return true
		}
		if n >= len(levels) {
			return false
		}
		if pattern != "+" && pattern != levels[n] {
			return false
		}
	}
	return len(levels) == len(patterns)
}

// BrokerOptionsFromURL parses mqtt://[user:pass@]host:port/prefix/?client-id=id
// into client options and the topic prefix.
func BrokerOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", err
	}
	scheme := "tcp"
	switch u.Scheme {
	case "mqtts", "ssl":
		scheme = "ssl"
	case "", "mqtt", "tcp":
	default:
		return nil, "", fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		host += ":1883"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

// NewBroker creates a Broker. The client is not connected.
func NewBroker(opts *paho.ClientOptions, topicPrefix string) *Broker {
	b := &Broker{TopicPrefix: topicPrefix}
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(b.onConnectionLost)
	b.Client = paho.NewClient(opts)
	return b
}

// Connect connects the client and waits for the result.
func (b *Broker) Connect(ctx context.Context) error {
	return waitToken(ctx, b.Client.Connect())
}

// Close disconnects the client.
func (b *Broker) Close() error {
	b.Client.Disconnect(250)
	return nil
}

// Publish publishes payload to TopicPrefix+topic and waits for delivery
// according to qos.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	glog.V(3).Infof("PUB %q %d bytes", b.TopicPrefix+topic, len(payload))
	return waitToken(ctx, b.Client.Publish(b.TopicPrefix+topic, qos, retain, payload))
}

// Subscribe registers a handler for topic, which may contain wildcards.
func (b *Broker) Subscribe(topic string, handler MessageHandler) *Subscription {
	wildcard := strings.Contains(topic, "+") || strings.HasSuffix(topic, "#")
	b.subsLock.Lock()
	if b.subs == nil {
		b.subs = make(map[string]*list.List)
		b.wildcardSubs = make(map[string]*list.List)
	}
	subs := b.subs
	if wildcard {
		subs = b.wildcardSubs
	}
	lst := subs[topic]
	first := lst == nil
	if first {
		lst = list.New()
		subs[topic] = lst
	}
	sub := &Subscription{broker: b, topic: topic, wildcard: wildcard, handler: handler}
	sub.elm = lst.PushBack(sub)
	b.subsLock.Unlock()

	if first && b.Client.IsConnected() {
		glog.V(2).Infof("SUB %q", b.TopicPrefix+topic)
		b.Client.Subscribe(b.TopicPrefix+topic, 0, b.dispatch)
	}
	return sub
}

// Close removes the handler, unsubscribing when it was the last one.
func (s *Subscription) Close() error {
	b := s.broker
	var unsub bool
	b.subsLock.Lock()
	subs := b.subs
	if s.wildcard {
		subs = b.wildcardSubs
	}
	if lst := subs[s.topic]; lst != nil {
		lst.Remove(s.elm)
		if unsub = lst.Len() == 0; unsub {
			delete(subs, s.topic)
		}
	}
	b.subsLock.Unlock()
	if !unsub || !b.Client.IsConnected() {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", b.TopicPrefix+s.topic)
	token := b.Client.Unsubscribe(b.TopicPrefix + s.topic)
	token.Wait()
	return token.Error()
}

func (b *Broker) onConnect(paho.Client) {
	glog.V(1).Info("mqtt connected")
	filters := make(map[string]byte)
	b.subsLock.RLock()
	for topic := range b.subs {
		filters[b.TopicPrefix+topic] = 0
	}
	for topic := range b.wildcardSubs {
		filters[b.TopicPrefix+topic] = 0
	}
	b.subsLock.RUnlock()
	if len(filters) > 0 {
		b.Client.SubscribeMultiple(filters, b.dispatch)
	}
}

func (b *Broker) onConnectionLost(_ paho.Client, err error) {
	glog.Warningf("mqtt connection lost: %v", err)
}

func (b *Broker) dispatch(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	if !strings.HasPrefix(topic, b.TopicPrefix) {
		return
	}
	topic = topic[len(b.TopicPrefix):]
	glog.V(3).Infof("RCV %q", topic)
	var handlers []MessageHandler
	b.subsLock.RLock()
	if lst := b.subs[topic]; lst != nil {
		for elm := lst.Front(); elm != nil; elm = elm.Next() {
			handlers = append(handlers, elm.Value.(*Subscription).handler)
		}
	}
	for filter, lst := range b.wildcardSubs {
		if MatchTopic(topic, filter) {
			for elm := lst.Front(); elm != nil; elm = elm.Next() {
				handlers = append(handlers, elm.Value.(*Subscription).handler)
			}
		}
	}
	b.subsLock.RUnlock()
	payload := msg.Payload()
	for _, h := range handlers {
		h(topic, payload)
	}
}

func waitToken(ctx context.Context, token paho.Token) error {
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-done:
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MQTTDialer publishes each payload as one MQTT message.
type MQTTDialer struct {
	BrokerURL string
	Topic     string
	QoS       byte
	Retain    bool
}

// NewMQTTDialer creates an MQTTDialer from a broker URL. The query
// parameters topic, qos and retain select how payloads are published.
func NewMQTTDialer(brokerURL string) (*MQTTDialer, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, err
	}
	d := &MQTTDialer{BrokerURL: brokerURL, Topic: DefaultTopic, QoS: 1}
	query := u.Query()
	if topic := query.Get("topic"); topic != "" {
		d.Topic = topic
	}
	if qos := query.Get("qos"); qos != "" {
		n, err := strconv.Atoi(qos)
		if err != nil || n < 0 || n > 2 {
			return nil, fmt.Errorf("invalid qos %q", qos)
		}
		d.QoS = byte(n)
	}
	if retain := query.Get("retain"); retain != "" {
		if d.Retain, err = strconv.ParseBool(retain); err != nil {
			return nil, fmt.Errorf("invalid retain %q", retain)
		}
	}
	if _, _, err := BrokerOptionsFromURL(brokerURL); err != nil {
		return nil, err
	}
	return d, nil
}

// Dial implements Dialer. Reconnection is left to the caller, so the
// client's own auto-reconnect is disabled.
func (d *MQTTDialer) Dial(ctx context.Context) (Conn, error) {
	opts, prefix, err := BrokerOptionsFromURL(d.BrokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetAutoReconnect(false).SetConnectTimeout(DefaultDialTimeout)
	b := NewBroker(opts, prefix)
	if err := b.Connect(ctx); err != nil {
		b.Client.Disconnect(0)
		return nil, err
	}
	return &mqttConn{broker: b, dialer: d, clientID: opts.ClientID}, nil
}

type mqttConn struct {
	broker   *Broker
	dialer   *MQTTDialer
	clientID string
	closed   bool
	lock     sync.Mutex
}

func (c *mqttConn) Send(ctx context.Context, payload []byte) error {
	c.lock.Lock()
	closed := c.closed
	c.lock.Unlock()
	if closed {
		return ErrClosed
	}
	if !c.broker.Client.IsConnected() {
		return fmt.Errorf("mqtt: not connected")
	}
	return c.broker.Publish(ctx, c.dialer.Topic, payload, c.dialer.QoS, c.dialer.Retain)
}

func (c *mqttConn) LocalAddr() string {
	if c.clientID != "" {
		return "mqtt:" + c.clientID
	}
	return "mqtt"
}

func (c *mqttConn) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.broker.Client.Disconnect(250)
	return nil
}
