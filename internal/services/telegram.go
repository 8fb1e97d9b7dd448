package services

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var Bot *tgbotapi.BotAPI
var AdminChatID int64 // registered when an admin sends /start

func InitBot(token string) error {
	var err error
	Bot, err = tgbotapi.NewBotAPI(token)
	if err != nil {
		return err
	}

	log.Printf("Bot authorized as %s", Bot.Self.UserName)

	// Background listener so an admin can register their chat id.
	go listenForCommands()

	return nil
}

func listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		if update.Message.IsCommand() {
			switch update.Message.Command() {
			case "start":
				AdminChatID = update.Message.Chat.ID
				msg := tgbotapi.NewMessage(AdminChatID, fmt.Sprintf("Registered chat %d for donation and distribution alerts.", AdminChatID))
				Bot.Send(msg)
				log.Printf("Admin chat id registered: %d", AdminChatID)
			}
		}
	}
}

// NotifyAdmin pushes a Telegram message to the registered admin chat.
// Best effort: the caller's transaction has already committed.
func NotifyAdmin(text string) {
	if Bot == nil || AdminChatID == 0 {
		log.Println("Telegram bot not initialized or admin chat unknown")
		return
	}

	msg := tgbotapi.NewMessage(AdminChatID, text)
	_, err := Bot.Send(msg)
	if err != nil {
		log.Printf("Error sending notification: %v", err)
	}
}

// NotifyDonation formats the new-donation alert.
func NotifyDonation(receipt, donor string, amount float64, campaign string) {
	NotifyAdmin(fmt.Sprintf("🧾 New donation %s\n👤 %s\n💰 %.2f\n🎯 %s", receipt, donor, amount, campaign))
}

// NotifyBatchCompleted formats the batch-completed alert.
func NotifyBatchCompleted(batchName string, totalItems int) {
	NotifyAdmin(fmt.Sprintf("📦 Batch completed: %s\n✅ %d items distributed", batchName, totalItems))
}
