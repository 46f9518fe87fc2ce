package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"autorunner/internal/model"
)

func runPMA(args []string) int {
	if len(args) == 0 || args[0] != "targets" {
		return usageErr("usage: pma targets {list|add|rm|clear}")
	}
	args = args[1:]
	if len(args) == 0 {
		return usageErr("usage: pma targets {list|add|rm|clear}")
	}

	switch args[0] {
	case "list":
		return pmaTargetsList(args[1:])
	case "add":
		return pmaTargetsAdd(args[1:])
	case "rm":
		return pmaTargetsRemove(args[1:])
	case "clear":
		return pmaTargetsClear(args[1:])
	default:
		return usageErr("unknown pma targets subcommand %q", args[0])
	}
}

func pmaTargetsList(args []string) int {
	fs := flag.NewFlagSet("pma targets list", flag.ContinueOnError)
	hubRoot := fs.String("hub", "", "hub root directory")
	asJSON := fs.Bool("json", false, "emit JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	store, err := openHubStore(*hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	f, err := store.ReadTargets()
	if err != nil {
		return fail("list targets: %v", err)
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(f.Targets); err != nil {
			return fail("encode targets: %v", err)
		}
		return exitOK
	}
	for _, t := range f.Targets {
		fmt.Printf("%s\tkind=%s", t.TargetKey(), t.Kind)
		if t.Kind == model.TargetChat {
			fmt.Printf(" platform=%s chat_id=%s", t.Platform, t.ChatID)
			if t.ThreadID != "" {
				fmt.Printf(" thread_id=%s", t.ThreadID)
			}
		}
		if t.Kind == model.TargetLocal {
			fmt.Printf(" path=%s", t.Path)
		}
		fmt.Println()
	}
	return exitOK
}

func pmaTargetsAdd(args []string) int {
	fs := flag.NewFlagSet("pma targets add", flag.ContinueOnError)
	hubRoot := fs.String("hub", "", "hub root directory")
	kind := fs.String("kind", "", "target kind: web|local|chat")
	path := fs.String("path", "", "local target: destination file path")
	platform := fs.String("platform", "", "chat target: telegram|discord")
	chatID := fs.String("chat-id", "", "chat target: chat id")
	threadID := fs.String("thread-id", "", "chat target: thread id (telegram only)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	target, uerr := buildTarget(*kind, *path, *platform, *chatID, *threadID)
	if uerr != "" {
		return usageErr("%s", uerr)
	}

	store, err := openHubStore(*hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	if err := store.TargetUpsert(target); err != nil {
		return fail("add target: %v", err)
	}
	fmt.Println(target.TargetKey())
	return exitOK
}

func buildTarget(kind, path, platform, chatID, threadID string) (model.DeliveryTarget, string) {
	switch model.TargetKind(kind) {
	case model.TargetWeb:
		return model.DeliveryTarget{Kind: model.TargetWeb}, ""
	case model.TargetLocal:
		if path == "" {
			return model.DeliveryTarget{}, "--path is required for --kind local"
		}
		return model.DeliveryTarget{Kind: model.TargetLocal, Path: path}, ""
	case model.TargetChat:
		if chatID == "" {
			return model.DeliveryTarget{}, "--chat-id is required for --kind chat"
		}
		switch model.ChatPlatform(platform) {
		case model.PlatformTelegram, model.PlatformDiscord:
		default:
			return model.DeliveryTarget{}, "--platform must be telegram or discord"
		}
		return model.DeliveryTarget{Kind: model.TargetChat, Platform: model.ChatPlatform(platform), ChatID: chatID, ThreadID: threadID}, ""
	default:
		return model.DeliveryTarget{}, "--kind must be web, local, or chat"
	}
}

func pmaTargetsRemove(args []string) int {
	fs := flag.NewFlagSet("pma targets rm", flag.ContinueOnError)
	hubRoot := fs.String("hub", "", "hub root directory")
	key := fs.String("key", "", "target_key to remove")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *key == "" {
		return usageErr("--key is required")
	}

	store, err := openHubStore(*hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	if err := store.TargetRemove(*key); err != nil {
		return fail("remove target: %v", err)
	}
	return exitOK
}

func pmaTargetsClear(args []string) int {
	fs := flag.NewFlagSet("pma targets clear", flag.ContinueOnError)
	hubRoot := fs.String("hub", "", "hub root directory")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	store, err := openHubStore(*hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	f, err := store.ReadTargets()
	if err != nil {
		return fail("read targets: %v", err)
	}
	for _, t := range f.Targets {
		if err := store.TargetRemove(t.TargetKey()); err != nil {
			return fail("clear targets: %v", err)
		}
	}
	return exitOK
}
