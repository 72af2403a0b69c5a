package notification

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
)

// Notifier pushes alerts to registered crew devices through Expo.
// Broadcast sends are best-effort; a failed push is logged and recorded,
// never bubbled up to the caller.
type Notifier struct {
	db         *gorm.DB
	expoClient *expo.PushClient
}

func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{
		db:         db,
		expoClient: expo.NewPushClient(nil),
	}
}

// NotifyAll fans a push message out to all registered devices.
func (n *Notifier) NotifyAll(title, body string, data map[string]interface{}) {
	var devices []models.Device
	if err := n.db.Find(&devices).Error; err != nil {
		log.Printf("Error loading devices for push: %v", err)
		return
	}

	stringData := stringifyData(data)

	for _, device := range devices {
		if err := n.sendToDevice(device, title, body, stringData, data); err != nil {
			log.Printf("Error sending push to device %d: %v", device.ID, err)
		}
	}
}

// NotifyDevice sends a push message to one registered device by token.
// Unlike broadcasts the error is returned so the caller can report it.
func (n *Notifier) NotifyDevice(token, title, body string, data map[string]interface{}) error {
	var device models.Device
	if err := n.db.Where("token = ?", token).First(&device).Error; err != nil {
		return err
	}
	return n.sendToDevice(device, title, body, stringifyData(data), data)
}

func (n *Notifier) sendToDevice(device models.Device, title, body string, stringData map[string]string, data map[string]interface{}) error {
	pushToken, err := expo.NewExponentPushToken(device.Token)
	if err != nil {
		return fmt.Errorf("invalid push token for device %d: %w", device.ID, err)
	}

	message := expo.PushMessage{
		To:       []expo.ExponentPushToken{pushToken},
		Title:    title,
		Body:     body,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     stringData,
	}

	status := "sent"
	var sendErr error
	response, err := n.expoClient.Publish(&message)
	if err != nil {
		status = "failed"
		sendErr = err
	} else if validationErr := response.ValidateResponse(); validationErr != nil {
		status = "failed"
		sendErr = validationErr
	}

	n.recordHistory(device.OwnerName, title, body, data, status)
	return sendErr
}

// Expo only accepts string payload values.
func stringifyData(data map[string]interface{}) map[string]string {
	if data == nil {
		return nil
	}
	stringData := make(map[string]string, len(data))
	for key, value := range data {
		stringData[key] = fmt.Sprintf("%v", value)
	}
	return stringData
}

func (n *Notifier) recordHistory(owner, title, body string, data map[string]interface{}, status string) {
	dataJSON := ""
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			dataJSON = string(raw)
		}
	}

	history := models.NotificationHistory{
		OwnerName: owner,
		Title:     title,
		Body:      body,
		Data:      dataJSON,
		Status:    status,
		SentAt:    time.Now(),
	}
	if err := n.db.Create(&history).Error; err != nil {
		log.Printf("Error recording notification history: %v", err)
	}
}
