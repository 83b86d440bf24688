package kafka

import (
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicTicketIssued       = "tickethub.ticket.issued"
	TopicTicketRefunded     = "tickethub.ticket.refunded"
	TopicWaitingListOffered = "tickethub.waitinglist.offered"
	TopicWaitingListExpired = "tickethub.waitinglist.expired"
	TopicEventCancelled     = "tickethub.event.cancelled"
)

// RequiredTopics lists every topic the service publishes to.
func RequiredTopics() []string {
	return []string{
		TopicTicketIssued,
		TopicTicketRefunded,
		TopicWaitingListOffered,
		TopicWaitingListExpired,
		TopicEventCancelled,
	}
}

// EnsureTopicsExist creates the given topics if they are missing.
func EnsureTopicsExist(brokers []string, topics []string) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		topicConfigs := []kafka.TopicConfig{
			{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			},
		}

		err = controllerConn.CreateTopics(topicConfigs...)
		if err != nil {
			if err.Error() == "kafka server: topic already exists" {
				continue
			}
			log.Printf("Error creating topic %s: %v", topic, err)
		}
	}

	// Give the brokers a moment to settle before producers start.
	time.Sleep(1 * time.Second)
	return nil
}
