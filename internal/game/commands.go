package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/lei-da-rua/internal/district"
	"github.com/user/lei-da-rua/internal/interfaces"
	"github.com/user/lei-da-rua/internal/reputation"
	"github.com/user/lei-da-rua/internal/types"
)

const commandTimeout = 5 * time.Second

// StreetCommands answers inbound chat queries about the simulation.
// The sender's phone number doubles as their actor id.
type StreetCommands struct {
	engine *district.Engine
	ledger *reputation.Ledger
	graph  *reputation.Graph
	store  interfaces.Store
	logger *zap.Logger
}

// NewStreetCommands creates the chat command handler
func NewStreetCommands(engine *district.Engine, ledger *reputation.Ledger, graph *reputation.Graph, store interfaces.Store, logger *zap.Logger) *StreetCommands {
	return &StreetCommands{
		engine: engine,
		ledger: ledger,
		graph:  graph,
		store:  store,
		logger: logger,
	}
}

// HandleCommand dispatches a normalized '/...' command
func (sc *StreetCommands) HandleCommand(sender, command string) string {
	command = strings.TrimPrefix(command, "/")
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch parts[0] {
	case "ajuda":
		return sc.handleHelpCommand()
	case "distrito":
		if len(parts) < 2 {
			return "Digite */distrito [nome]* para ver como anda o bairro. 🗺️"
		}
		return sc.handleDistrictCommand(ctx, parts[1])
	case "clima":
		if len(parts) < 2 {
			return "Digite */clima [nome]* para sentir o clima do bairro. 🌡️"
		}
		return sc.handleClimateCommand(ctx, parts[1])
	case "fama":
		if len(parts) < 2 {
			return "Digite */fama [facção]* para saber como eles te veem. 🎭"
		}
		return sc.handleFameCommand(ctx, sender, parts[1])
	case "alertas":
		return sc.handleAlertsCommand(ctx, sender)
	default:
		return "Comando desconhecido. Digite */ajuda* para ver os comandos disponíveis."
	}
}

func (sc *StreetCommands) handleHelpCommand() string {
	return "📱 *LEI DA RUA* 📱\n\n" +
		"*/distrito [nome]* - situação do bairro 🗺️\n" +
		"*/clima [nome]* - modificadores ativos 🌡️\n" +
		"*/fama [facção]* - sua fama com a facção 🎭\n" +
		"*/alertas* - receber avisos por aqui 🔔\n" +
		"*/ajuda* - esta mensagem"
}

func (sc *StreetCommands) handleDistrictCommand(ctx context.Context, districtID string) string {
	if _, known := sc.graph.District(districtID); !known {
		return fmt.Sprintf("Nunca ouvi falar desse *%s*... confere o nome aí. 🤔", districtID)
	}

	state, err := sc.engine.State(ctx, districtID)
	if err != nil {
		sc.logger.Error("Failed to load district state for command",
			zap.String("district_id", districtID),
			zap.Error(err))
		return "Ops! Algo deu errado consultando o bairro. 😱"
	}

	return fmt.Sprintf("🗺️ *%s* — %s %s\n\n"+
		"Crime: %d 🔫\n"+
		"Polícia: %d 🚔\n"+
		"Imóveis: %d 🏠\n"+
		"Comércio: %d 🏪\n"+
		"Movimento: %d 🎉\n"+
		"Tensão: %d 🔥",
		strings.ToUpper(districtID), statusLabel(state.Status), statusEmoji(state.Status),
		state.Metrics.CrimeLevel,
		state.Metrics.PolicePresence,
		state.Metrics.PropertyValue,
		state.Metrics.BusinessHealth,
		state.Metrics.StreetActivity,
		state.Metrics.CrewTension)
}

func (sc *StreetCommands) handleClimateCommand(ctx context.Context, districtID string) string {
	if _, known := sc.graph.District(districtID); !known {
		return fmt.Sprintf("Nunca ouvi falar desse *%s*... confere o nome aí. 🤔", districtID)
	}

	modifiers, err := sc.engine.Modifiers(ctx, districtID)
	if err != nil {
		sc.logger.Error("Failed to load district modifiers for command",
			zap.String("district_id", districtID),
			zap.Error(err))
		return "Ops! Algo deu errado consultando o clima. 😱"
	}

	response := fmt.Sprintf("🌡️ *CLIMA EM %s* 🌡️\n\n"+
		"Dificuldade do crime: %.2f\n"+
		"Renda de imóveis: %.2f\n"+
		"Recrutamento: %.2f\n"+
		"Bônus de ganhos: %.2f\n",
		strings.ToUpper(districtID),
		modifiers.CrimeDifficulty,
		modifiers.PropertyIncome,
		modifiers.RecruitmentEase,
		modifiers.PayoutBonus)

	if len(modifiers.ActiveEffects) > 0 {
		response += "\nEfeitos ativos:\n"
		for effect, value := range modifiers.ActiveEffects {
			response += fmt.Sprintf("• %s: %+.2f\n", effect, value)
		}
	}
	return response
}

func (sc *StreetCommands) handleFameCommand(ctx context.Context, sender, factionID string) string {
	faction, known := sc.graph.Faction(factionID)
	if !known {
		return fmt.Sprintf("Essa *%s* aí não manda em nada por aqui. 🤔", factionID)
	}

	record, err := sc.ledger.Get(ctx, sender, types.TargetFaction, factionID)
	if err != nil {
		sc.logger.Error("Failed to load reputation for command",
			zap.String("actor_id", sender),
			zap.String("faction_id", factionID),
			zap.Error(err))
		return "Ops! Algo deu errado consultando sua fama. 😱"
	}

	return fmt.Sprintf("🎭 *SUA FAMA COM %s* 🎭\n\n"+
		"Respeito: %d ✊\n"+
		"Medo: %d 😨\n"+
		"Confiança: %d 🤝\n"+
		"Calor: %d 🚨\n\n"+
		"Na rua dizem que você é *%s* pra eles.",
		strings.ToUpper(faction.Name),
		record.Respect, record.Fear, record.Trust, record.Heat,
		standingLabel(record.Standing))
}

func (sc *StreetCommands) handleAlertsCommand(ctx context.Context, sender string) string {
	if err := sc.store.SetPushTarget(ctx, sender, sender); err != nil {
		sc.logger.Error("Failed to register push target",
			zap.String("actor_id", sender),
			zap.Error(err))
		return "Ops! Não consegui ligar seus alertas. 😱"
	}
	return "🔔 Alertas ligados! Quando algo acontecer com você, a rua avisa."
}

func statusLabel(status string) string {
	switch status {
	case types.StatusWarzone:
		return "ZONA DE GUERRA"
	case types.StatusGentrifying:
		return "GENTRIFICANDO"
	case types.StatusDeclining:
		return "EM DECLÍNIO"
	case types.StatusVolatile:
		return "VOLÁTIL"
	default:
		return "ESTÁVEL"
	}
}

func statusEmoji(status string) string {
	switch status {
	case types.StatusWarzone:
		return "💥"
	case types.StatusGentrifying:
		return "🏗️"
	case types.StatusDeclining:
		return "📉"
	case types.StatusVolatile:
		return "⚡"
	default:
		return "🕊️"
	}
}

func standingLabel(standing string) string {
	switch standing {
	case types.StandingHated:
		return "odiado"
	case types.StandingNotorious:
		return "mau elemento"
	case types.StandingKnown:
		return "conhecido"
	case types.StandingFeared:
		return "temido"
	case types.StandingTrusted:
		return "de confiança"
	case types.StandingRespected:
		return "respeitado"
	case types.StandingLegendary:
		return "lenda viva"
	default:
		return "um zé ninguém"
	}
}
