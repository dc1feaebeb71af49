// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Bus layout. Routing keys are published under SubjectPrefix; durable commands are
// captured by the CommandStreamName stream while status probes and replies stay on
// core NATS subjects outside of it.
const (
	// SubjectPrefix namespaces every routing key on the bus.
	SubjectPrefix = "meetbot."

	// CommandStreamName is the durable stream holding bot commands.
	CommandStreamName = "MEET_BOT_COMMANDS"

	// StatusReplySubject is the well-known destination bots answer status requests on.
	StatusReplySubject = "meetbot.status.responses"

	// CorrelationIDHeader carries the correlation id of status requests and replies.
	CorrelationIDHeader = "Correlation-Id"
)

// CommandStreamSubjects are the subjects captured by the durable command stream.
var CommandStreamSubjects = []string{
	SubjectPrefix + "start.meeting",
	SubjectPrefix + "meeting.*.start",
	SubjectPrefix + "meeting.*.stop",
	SubjectPrefix + "meeting.*.pause",
	SubjectPrefix + "meeting.*.resume",
}

// NATS request/reply subjects served by this service.
const (
	// BotStatusSubject answers with the derived status of the meeting id in the request body.
	BotStatusSubject = "lfx.meet-bot.bot_status"

	// ActiveInstancesSubject answers with the current active instance counts.
	ActiveInstancesSubject = "lfx.meet-bot.active_instances"

	// MeetBotAPIQueue is the queue group of the request/reply subscriptions.
	MeetBotAPIQueue = "lfx.meet-bot.queue"
)
