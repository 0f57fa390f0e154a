package pkg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters, exposed on the admin router's /metrics endpoint.
var (
	MessagesModerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vipbot_messages_moderated_total",
		Help: "Messages deleted because the author was not verified.",
	})
	VerificationsGranted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vipbot_verifications_granted_total",
		Help: "Successful verifications meeting the merit threshold.",
	})
	VerificationsRefused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vipbot_verifications_refused_total",
		Help: "Verification attempts refused (bad proof, conflict, shortfall).",
	})
	Demotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vipbot_demotions_total",
		Help: "Verified users demoted after a stale re-check.",
	})
	CleanupDeletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vipbot_cleanup_deletions_total",
		Help: "Messages removed by the delayed spam cleanup.",
	})
)
