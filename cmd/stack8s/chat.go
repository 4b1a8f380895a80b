package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"stack8s/internal/types"
)

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// runChat drives the interactive planning REPL.
func runChat() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(assistantStyle.Render("stack8s - AI deployment planner"))
	fmt.Println(dimStyle.Render("Describe what you want to deploy. Type /quit to exit."))
	fmt.Println()

	conversationID := a.controller.StartConversation()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}
		if line == "/new" {
			conversationID = a.controller.StartConversation()
			fmt.Println(dimStyle.Render("Started a new conversation."))
			continue
		}

		resp, err := a.controller.HandleTurn(ctx, conversationID, line)
		if err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Error: %v", err)))
			continue
		}
		printResponse(renderer, resp)

		if ctx.Err() != nil {
			break
		}
	}

	fmt.Println(dimStyle.Render("\nGoodbye."))
	return scanner.Err()
}

func printResponse(renderer *glamour.TermRenderer, resp types.TurnResponse) {
	switch resp.ResponseType {
	case types.ResponseDeploymentPlan:
		rendered, err := renderer.Render(resp.ResponseText)
		if err != nil {
			fmt.Println(resp.ResponseText)
			return
		}
		fmt.Print(rendered)
	case types.ResponseError:
		fmt.Println(errorStyle.Render(resp.ResponseText))
	default:
		fmt.Println(assistantStyle.Render(resp.ResponseText))
	}
	fmt.Println()
}
