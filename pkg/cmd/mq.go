package cmd

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/spf13/cobra"

	"github.com/yeisme/papervault/pkg/configs"
	mq "github.com/yeisme/papervault/pkg/internal/storage/mq"
	"github.com/yeisme/papervault/pkg/queue"
)

var (
	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "Message queue related commands",
		Aliases: []string{"messagequeue"},
	}

	mqTypesCmd = &cobra.Command{
		Use:     "types",
		Short:   "List compiled-in message queue backends",
		Aliases: []string{"list", "ls"},
		Run: func(cmd *cobra.Command, _ []string) {
			current := configs.GetConfig().MQ.GetMQType()

			for _, t := range mq.GetRegisteredMQTypes() {
				mark := " "
				if t == current {
					mark = "*"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, t)
			}
		},
	}

	mqTailCmd = &cobra.Command{
		Use:   "tail",
		Short: "print paper events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := mq.New(ctx, &configs.GetConfig().MQ, false)
			if err != nil {
				return err
			}
			defer client.Close()

			out := make(chan *message.Message)

			for _, topic := range queue.PaperTopics {
				ch, err := client.Subscribe(ctx, topic)
				if err != nil {
					return fmt.Errorf("subscribe %s: %w", topic, err)
				}

				go func() {
					for msg := range ch {
						select {
						case out <- msg:
							msg.Ack()
						case <-ctx.Done():
							msg.Nack()
							return
						}
					}
				}()
			}

			w := cmd.OutOrStdout()

			for {
				select {
				case msg := <-out:
					hdr, payload, err := queue.Peek(msg)
					if err != nil {
						fmt.Fprintf(w, "%s undecodable: %v\n", msg.Metadata.Get(queue.MetaTopic), err)
						continue
					}

					fmt.Fprintf(w, "%s %s trace=%s %s\n",
						hdr.OccurredAt.Format(time.RFC3339), hdr.Topic, orDash(hdr.TraceID), payload)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
)

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

// registerMQCommands 注册 MQ 相关命令.
func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqTypesCmd)
	mqCmd.AddCommand(mqTailCmd)
}
