package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/lei-da-rua/config"
	"github.com/user/lei-da-rua/internal/interfaces"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// CommandHandler answers an inbound street query and returns the reply
// text, or empty string for no reply
type CommandHandler interface {
	HandleCommand(sender, command string) string
}

// ClientManager handles WhatsApp client connections
type ClientManager struct {
	clients  map[string]*ClientInfo
	commands CommandHandler
	config   config.Config
	logger   *zap.Logger
	mutex    sync.RWMutex
}

var _ interfaces.PushSender = (*ClientManager)(nil)

// ClientInfo holds information about a WhatsApp client connection
type ClientInfo struct {
	UUID        string
	PhoneNumber string
	Client      *whatsmeow.Client
	Store       *store.Device
}

// NewClientManager creates a new WhatsApp client manager
func NewClientManager(commands CommandHandler, cfg config.Config, logger *zap.Logger) *ClientManager {
	cm := &ClientManager{
		clients:  make(map[string]*ClientInfo),
		commands: commands,
		config:   cfg,
		logger:   logger,
	}

	// Restore existing sessions
	cm.restoreExistingSessions()

	return cm
}

// restoreExistingSessions attempts to restore all existing WhatsApp sessions
func (cm *ClientManager) restoreExistingSessions() {
	// Create store directory if it doesn't exist
	if err := os.MkdirAll(cm.config.WhatsApp.StoreDir, 0755); err != nil {
		cm.logger.Error("Failed to create store directory", zap.Error(err))
		return
	}

	// Look for all database files in the store directory
	pattern := filepath.Join(cm.config.WhatsApp.StoreDir, "store_*.db")
	files, err := filepath.Glob(pattern)
	if err != nil {
		cm.logger.Error("Failed to scan for existing sessions", zap.Error(err))
		return
	}

	// Map to store the most recent session file for each phone number
	latestSessions := make(map[string]struct {
		file      string
		sessionID string
		modTime   time.Time
	})

	// Find the most recent session file for each phone number
	for _, file := range files {
		base := filepath.Base(file)
		parts := strings.Split(strings.TrimSuffix(base, ".db"), "_")
		if len(parts) < 3 {
			continue
		}
		phoneNumber := parts[1]
		sessionID := parts[2]

		fileInfo, err := os.Stat(file)
		if err != nil {
			cm.logger.Error("Failed to get file info",
				zap.String("file", file),
				zap.Error(err))
			continue
		}

		if current, exists := latestSessions[phoneNumber]; !exists || fileInfo.ModTime().After(current.modTime) {
			latestSessions[phoneNumber] = struct {
				file      string
				sessionID string
				modTime   time.Time
			}{
				file:      file,
				sessionID: sessionID,
				modTime:   fileInfo.ModTime(),
			}
		}
	}

	// Clean up old session files and restore the most recent ones
	for phoneNumber, latest := range latestSessions {
		for _, file := range files {
			if strings.Contains(file, "store_"+phoneNumber+"_") && file != latest.file {
				if err := os.Remove(file); err != nil {
					cm.logger.Error("Failed to remove old session file",
						zap.String("file", file),
						zap.Error(err))
				} else {
					cm.logger.Info("Removed old session file",
						zap.String("file", file))
				}
			}
		}

		dbPath := fmt.Sprintf("file:%s/%s?_foreign_keys=on", cm.config.WhatsApp.StoreDir, filepath.Base(latest.file))
		dbLog := waLog.Stdout("Database", "INFO", true)
		container, err := sqlstore.New("sqlite3", dbPath, dbLog)
		if err != nil {
			cm.logger.Error("Failed to initialize database",
				zap.String("phoneNumber", phoneNumber),
				zap.Error(err))
			continue
		}

		deviceStore, err := container.GetFirstDevice()
		if err != nil {
			cm.logger.Info("No valid session found in database",
				zap.String("phoneNumber", phoneNumber))
			continue
		}

		clientLog := waLog.Stdout("Client", "INFO", true)
		client := whatsmeow.NewClient(deviceStore, clientLog)
		client.AddEventHandler(cm.handleWhatsAppEvent)

		cm.mutex.Lock()
		cm.clients[phoneNumber] = &ClientInfo{
			UUID:        latest.sessionID,
			PhoneNumber: phoneNumber,
			Client:      client,
			Store:       deviceStore,
		}
		cm.mutex.Unlock()

		if client.Store.ID != nil {
			go func(phone string, cli *whatsmeow.Client) {
				if err := cli.Connect(); err != nil {
					cm.logger.Error("Failed to connect restored client",
						zap.String("phoneNumber", phone),
						zap.Error(err))
					return
				}
				cm.logger.Info("Successfully connected restored client",
					zap.String("phoneNumber", phone))
			}(phoneNumber, client)
		} else {
			cm.logger.Info("Session requires QR code login",
				zap.String("phoneNumber", phoneNumber))
		}
	}
}

// SetupClient initializes a new WhatsApp client
func (cm *ClientManager) SetupClient(sessionID, phoneNumber string) (*whatsmeow.Client, error) {
	if err := os.MkdirAll(cm.config.WhatsApp.StoreDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := fmt.Sprintf("file:%s/store_%s_%s.db?_foreign_keys=on", cm.config.WhatsApp.StoreDir, phoneNumber, sessionID)

	dbLog := waLog.Stdout("Database", "INFO", true)
	container, err := sqlstore.New("sqlite3", dbPath, dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice()
	if err != nil {
		deviceStore = container.NewDevice()
	}

	store.DeviceProps.RequireFullSync = proto.Bool(true)
	store.DeviceProps.Os = proto.String(cm.config.WhatsApp.ClientName)

	clientLog := waLog.Stdout("Client", "INFO", true)
	client := whatsmeow.NewClient(deviceStore, clientLog)
	client.AddEventHandler(cm.handleWhatsAppEvent)

	cm.mutex.Lock()
	cm.clients[phoneNumber] = &ClientInfo{
		UUID:        sessionID,
		PhoneNumber: phoneNumber,
		Client:      client,
		Store:       deviceStore,
	}
	cm.mutex.Unlock()

	return client, nil
}

// GetClient retrieves a WhatsApp client by phone number
func (cm *ClientManager) GetClient(phoneNumber string) (*whatsmeow.Client, bool) {
	cm.mutex.RLock()
	clientInfo, exists := cm.clients[phoneNumber]
	cm.mutex.RUnlock()

	if !exists {
		return nil, false
	}

	// If client exists but not connected, try to connect
	if !clientInfo.Client.IsConnected() && clientInfo.Store.ID != nil {
		if err := clientInfo.Client.Connect(); err != nil {
			cm.logger.Error("Failed to connect client",
				zap.String("phoneNumber", phoneNumber),
				zap.Error(err))
			return nil, false
		}
		cm.logger.Info("Successfully reconnected client",
			zap.String("phoneNumber", phoneNumber))
	}

	return clientInfo.Client, true
}

// GetQRChannel sets up a QR code channel for client authentication
func (cm *ClientManager) GetQRChannel(phoneNumber string) (<-chan whatsmeow.QRChannelItem, error) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	// If client exists, disconnect and remove it
	if clientInfo, exists := cm.clients[phoneNumber]; exists {
		clientInfo.Client.Disconnect()
		delete(cm.clients, phoneNumber)
	}

	sessionID := uuid.New().String()
	dbPath := fmt.Sprintf("file:%s/store_%s_%s.db?_foreign_keys=on", cm.config.WhatsApp.StoreDir, phoneNumber, sessionID)

	dbLog := waLog.Stdout("Database", "INFO", true)
	container, err := sqlstore.New("sqlite3", dbPath, dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deviceStore := container.NewDevice()

	store.DeviceProps.RequireFullSync = proto.Bool(true)
	store.DeviceProps.Os = proto.String(cm.config.WhatsApp.ClientName)

	clientLog := waLog.Stdout("Client", "INFO", true)
	client := whatsmeow.NewClient(deviceStore, clientLog)
	client.AddEventHandler(cm.handleWhatsAppEvent)

	// Get QR channel before storing or connecting
	qrChan, err := client.GetQRChannel(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get QR channel: %w", err)
	}

	cm.clients[phoneNumber] = &ClientInfo{
		UUID:        sessionID,
		PhoneNumber: phoneNumber,
		Client:      client,
		Store:       deviceStore,
	}

	go func() {
		if err := client.Connect(); err != nil {
			cm.logger.Error("Failed to connect client",
				zap.String("phoneNumber", phoneNumber),
				zap.Error(err))
			return
		}

		cm.logger.Info("Client connected successfully",
			zap.String("phoneNumber", phoneNumber))
	}()

	return qrChan, nil
}

// Connect establishes a connection to WhatsApp
func (cm *ClientManager) Connect(phoneNumber string) error {
	client, exists := cm.GetClient(phoneNumber)
	if !exists {
		return fmt.Errorf("client not found for phone number: %s", phoneNumber)
	}

	return client.Connect()
}

// Disconnect closes a specific WhatsApp connection
func (cm *ClientManager) Disconnect(phoneNumber string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	clientInfo, exists := cm.clients[phoneNumber]
	if !exists {
		return fmt.Errorf("client not found for phone number: %s", phoneNumber)
	}

	clientInfo.Client.Disconnect()
	delete(cm.clients, phoneNumber)
	return nil
}

// DisconnectAll closes all WhatsApp connections
func (cm *ClientManager) DisconnectAll() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for phoneNumber, clientInfo := range cm.clients {
		if clientInfo.Client != nil {
			clientInfo.Client.Disconnect()
			cm.logger.Info("Disconnected client", zap.String("phoneNumber", phoneNumber))
		}
	}

	cm.clients = make(map[string]*ClientInfo)
}

// IsLoggedIn checks if a client is logged in
func (cm *ClientManager) IsLoggedIn(phoneNumber string) (bool, error) {
	client, exists := cm.GetClient(phoneNumber)
	if !exists {
		return false, fmt.Errorf("client not found for phone number: %s", phoneNumber)
	}

	return client.IsLoggedIn(), nil
}

// SendTextMessage sends a text message from a bot session to a recipient
func (cm *ClientManager) SendTextMessage(phoneNumber, recipient, message string) (string, error) {
	client, exists := cm.GetClient(phoneNumber)
	if !exists {
		return "", fmt.Errorf("client not found for phone number: %s", phoneNumber)
	}

	recipientJID, err := parseJID(recipient)
	if err != nil {
		return "", err
	}

	msg := &waProto.Message{
		Conversation: proto.String(message),
	}

	response, err := client.SendMessage(context.Background(), recipientJID, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	return response.ID, nil
}

// SendPush delivers a message to a player's phone using the first
// connected bot session
func (cm *ClientManager) SendPush(phoneNumber, message string) (string, error) {
	cm.mutex.RLock()
	var client *whatsmeow.Client
	for _, clientInfo := range cm.clients {
		if clientInfo.Client != nil && clientInfo.Client.IsConnected() {
			client = clientInfo.Client
			break
		}
	}
	cm.mutex.RUnlock()

	if client == nil {
		return "", fmt.Errorf("no connected client available for push delivery")
	}

	recipientJID, err := parseJID(phoneNumber)
	if err != nil {
		return "", err
	}

	msg := &waProto.Message{
		Conversation: proto.String(message),
	}

	response, err := client.SendMessage(context.Background(), recipientJID, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send push: %w", err)
	}

	return response.ID, nil
}

// handleWhatsAppEvent processes incoming WhatsApp events
func (cm *ClientManager) handleWhatsAppEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		cm.handleIncomingMessage(v)
	case *events.Connected:
		cm.logger.Info("WhatsApp client connected")
	case *events.Disconnected:
		cm.logger.Info("WhatsApp client disconnected")
	case *events.LoggedOut:
		cm.logger.Info("WhatsApp client logged out")
	}
}

// handleIncomingMessage processes incoming WhatsApp messages
func (cm *ClientManager) handleIncomingMessage(message *events.Message) {
	// Skip messages sent by this bot
	if message.Info.MessageSource.IsFromMe {
		return
	}

	content := message.Message.GetConversation()
	if content == "" && message.Message.ExtendedTextMessage != nil {
		content = *message.Message.ExtendedTextMessage.Text
	}
	if content == "" {
		return
	}

	// Group messages need the '/ ' prefix, private ones just '/'
	isGroup := message.Info.Chat.Server == "g.us"
	if isGroup {
		if !strings.HasPrefix(content, "/ ") {
			return
		}
		content = strings.TrimPrefix(content, "/ ")
	} else {
		if !strings.HasPrefix(content, "/") {
			return
		}
	}

	cm.logger.Debug("Received message",
		zap.String("content", content),
		zap.String("sender", message.Info.Sender.User),
		zap.String("chat", message.Info.Chat.User))

	if cm.commands == nil {
		return
	}

	response := cm.commands.HandleCommand(message.Info.Sender.User, cleanCommand(content))
	if response == "" {
		return
	}

	cm.mutex.RLock()
	var client *whatsmeow.Client
	for _, clientInfo := range cm.clients {
		client = clientInfo.Client
		break
	}
	cm.mutex.RUnlock()

	if client == nil {
		cm.logger.Error("No client available to send response")
		return
	}

	targetJID := message.Info.Chat
	msg := &waProto.Message{
		Conversation: proto.String(response),
	}

	if _, err := client.SendMessage(context.Background(), targetJID, msg); err != nil {
		cm.logger.Error("Failed to send response",
			zap.String("sender", message.Info.Sender.User),
			zap.Error(err))
	}
}

// cleanCommand normalizes an inbound command
func cleanCommand(command string) string {
	command = strings.ToLower(command)
	command = strings.TrimSpace(command)

	// Remove accents (simplified approach)
	command = strings.ReplaceAll(command, "á", "a")
	command = strings.ReplaceAll(command, "à", "a")
	command = strings.ReplaceAll(command, "â", "a")
	command = strings.ReplaceAll(command, "ã", "a")
	command = strings.ReplaceAll(command, "é", "e")
	command = strings.ReplaceAll(command, "ê", "e")
	command = strings.ReplaceAll(command, "í", "i")
	command = strings.ReplaceAll(command, "ó", "o")
	command = strings.ReplaceAll(command, "ô", "o")
	command = strings.ReplaceAll(command, "õ", "o")
	command = strings.ReplaceAll(command, "ú", "u")
	command = strings.ReplaceAll(command, "ç", "c")

	return command
}

// parseJID converts a string to a WhatsApp JID
func parseJID(jidString string) (waTypes.JID, error) {
	if !strings.ContainsRune(jidString, '@') {
		// Assume this is a phone number, add WhatsApp suffix
		jidString = jidString + "@s.whatsapp.net"
	}

	return waTypes.ParseJID(jidString)
}
