package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"pairchat/internal/config"
	"pairchat/internal/domain"
	"pairchat/internal/repository"
	"pairchat/internal/service"
)

// Consola interactiva que opera directamente sobre el store configurado, sin
// pasar por HTTP. Util para sembrar datos y revisar chats a mano.
func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	store, closeStore, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	identitySvc := service.NewIdentityService(logger, store.Users, nil, cfg.StoreTimeout)
	chatSvc := service.NewChatService(logger, store.Chats, nil, cfg.StoreTimeout)
	messageSvc := service.NewMessageService(logger, store.Chats, store.Messages,
		service.NewMemoryIdempotencyStore(time.Minute), nil, cfg.StoreTimeout, cfg.MaxMessageLength)

	for {
		fmt.Println("===== pairchat =====")
		fmt.Print("Usuario actual (vacio para salir): ")
		me, _ := reader.ReadString('\n')
		me = strings.TrimSpace(me)
		if me == "" {
			return
		}

		if err := runActionsMenu(ctx, reader, me, identitySvc, chatSvc, messageSvc); err != nil {
			log.Printf("error en menu: %v", err)
		}
	}
}

func runActionsMenu(
	ctx context.Context,
	reader *bufio.Reader,
	me string,
	identitySvc *service.IdentityService,
	chatSvc *service.ChatService,
	messageSvc *service.MessageService,
) error {
	for {
		fmt.Printf("\n--- Sesion de: %s ---\n", me)
		fmt.Println("[1] Registrar usuario")
		fmt.Println("[2] Abrir chat y escribir")
		fmt.Println("[3] Ver mis chats")
		fmt.Println("[4] Ver mensajes de un chat")
		fmt.Println("[5] Cambiar usuario")
		fmt.Println("[6] Salir")
		fmt.Print("Selecciona una opcion: ")

		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		switch line {
		case "1":
			if err := registerFlow(ctx, reader, me, identitySvc); err != nil {
				fmt.Printf("Error registrando usuario: %v\n", err)
			}
		case "2":
			if err := chatFlow(ctx, reader, me, chatSvc, messageSvc); err != nil {
				fmt.Printf("Error en chat: %v\n", err)
			}
		case "3":
			if err := listChatsFlow(ctx, me, chatSvc); err != nil {
				fmt.Printf("Error listando chats: %v\n", err)
			}
		case "4":
			if err := listMessagesFlow(ctx, reader, me, chatSvc, messageSvc); err != nil {
				fmt.Printf("Error listando mensajes: %v\n", err)
			}
		case "5":
			return nil
		case "6":
			os.Exit(0)
		default:
			fmt.Println("Opcion invalida.")
		}
	}
}

func registerFlow(ctx context.Context, reader *bufio.Reader, me string, identitySvc *service.IdentityService) error {
	fmt.Print("Nombre visible (opcional): ")
	custom, _ := reader.ReadString('\n')

	user, err := identitySvc.Register(ctx, service.RegisterInput{
		ExternalID:   me,
		CustomUserID: custom,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Usuario registrado con ID %s\n", user.ID)
	return nil
}

func chatFlow(ctx context.Context, reader *bufio.Reader, me string, chatSvc *service.ChatService, messageSvc *service.MessageService) error {
	fmt.Print("Chatear con: ")
	peer, _ := reader.ReadString('\n')
	peer = strings.TrimSpace(peer)

	chat, created, err := chatSvc.FindOrCreate(ctx, me, peer)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Chat nuevo %s\n", chat.ID)
	} else {
		fmt.Printf("Chat existente %s (ultimo: %q)\n", chat.ID, chat.LastMessage)
	}

	fmt.Println("---- Modo Chat (escribe 'salir' para terminar chat) ----")
	for {
		fmt.Print("Tu > ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("leer input: %w", err)
		}
		text = strings.TrimRight(text, "\r\n")
		if strings.EqualFold(text, "salir") || strings.EqualFold(text, "exit") {
			fmt.Println("Saliendo del chat...")
			return nil
		}

		msg, _, err := messageSvc.Append(ctx, service.AppendInput{
			ChatID:      chat.ID,
			SenderID:    me,
			RecipientID: peer,
			Text:        text,
		})
		if err != nil {
			fmt.Printf("error guardando mensaje: %v\n", err)
			continue
		}
		fmt.Printf("  #%d %s\n", msg.Seq, domain.FormatTimestamp(msg.Timestamp))
	}
}

func listChatsFlow(ctx context.Context, me string, chatSvc *service.ChatService) error {
	chats, err := chatSvc.ListForUser(ctx, me)
	if errors.Is(err, service.ErrNoChats) {
		fmt.Println("No hay chats para este usuario.")
		return nil
	}
	if err != nil {
		return err
	}
	table := newTable([]string{"#", "Chat", "Con", "Actualizado", "Ultimo mensaje"})
	for i, chat := range chats {
		table.Append([]string{
			strconv.Itoa(i + 1),
			chat.ID,
			peerOf(chat, me),
			domain.FormatTimestamp(chat.UpdatedAt),
			chat.LastMessage,
		})
	}
	table.Render()
	return nil
}

func listMessagesFlow(ctx context.Context, reader *bufio.Reader, me string, chatSvc *service.ChatService, messageSvc *service.MessageService) error {
	chats, err := chatSvc.ListForUser(ctx, me)
	if errors.Is(err, service.ErrNoChats) {
		fmt.Println("No hay chats para este usuario.")
		return nil
	}
	if err != nil {
		return err
	}
	for i, chat := range chats {
		fmt.Printf("[%d] con %s\n", i+1, peerOf(chat, me))
	}
	fmt.Print("Selecciona un chat: ")
	choice, _ := reader.ReadString('\n')
	idx, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || idx < 1 || idx > len(chats) {
		return errors.New("seleccion invalida")
	}

	messages, err := messageSvc.ListForChat(ctx, chats[idx-1].ID)
	if errors.Is(err, service.ErrNoMessages) {
		fmt.Println("Sin mensajes todavia.")
		return nil
	}
	if err != nil {
		return err
	}
	table := newTable([]string{"Seq", "Hora", "De", "Texto"})
	for _, msg := range messages {
		table.Append([]string{
			strconv.FormatInt(msg.Seq, 10),
			domain.FormatTimestamp(msg.Timestamp),
			msg.SenderID,
			msg.Text,
		})
	}
	table.Render()
	return nil
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	return table
}

func peerOf(chat domain.Chat, me string) string {
	if chat.UserID1 == me {
		return chat.UserID2
	}
	return chat.UserID1
}
