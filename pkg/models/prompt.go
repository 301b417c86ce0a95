package models

import (
	"strings"

	"github.com/comptaline/as400-ai-backend/pkg/agent"
)

// Backend mode identifiers surfaced in chat responses and health checks.
const (
	ModeAnthropic = "anthropic-claude"
	ModeThesys    = "thesys-c1"
)

const promptBase = `Tu es un assistant comptable expert pour une application de comptabilité AS400.

Tu aides les utilisateurs à :
- Analyser leurs données comptables
- Détecter des anomalies
- Répondre aux questions sur leur comptabilité
- Calculer des soldes et des statistiques
- Générer des rapports

Tu as accès à 3 outils puissants :
1. query_database : Pour interroger la base de données Supabase
2. analyze_account_balance : Pour calculer le solde d'un compte
3. detect_anomalies : Pour détecter des anomalies comptables

Contexte utilisateur :
- User ID: %USER%
- Company ID: %COMPANY%

Réponds toujours en français, de manière claire et professionnelle.`

const promptThesysExtra = `
IMPORTANT - Thesys C1 activé :
- Génère des UI interactives (tableaux, graphiques, cartes) quand c'est pertinent
- Présente les données comptables sous forme de tableaux
- Utilise des cartes pour les anomalies avec code couleur (🔴 haute, 🟡 moyenne, 🟢 faible)
- Crée des boutons d'action contextuels
- Organise les informations de manière visuelle
`

const promptAnthropicExtra = `Utilise des émojis pour rendre tes réponses plus agréables (💰 📊 ⚠️ ✅ etc.)`

// systemPrompt renders the French system prompt for the active backend. The
// Thesys variant carries generative-UI instructions; the Anthropic variant is
// text only.
func systemPrompt(mode string, prompt agent.PromptContext) string {
	userID := prompt.UserID
	if strings.TrimSpace(userID) == "" {
		userID = "non fourni"
	}
	companyID := prompt.CompanyID
	if strings.TrimSpace(companyID) == "" {
		companyID = "non fourni"
	}

	base := strings.ReplaceAll(promptBase, "%USER%", userID)
	base = strings.ReplaceAll(base, "%COMPANY%", companyID)

	if mode == ModeThesys {
		return base + "\n" + promptThesysExtra
	}
	return base + "\n" + promptAnthropicExtra
}
