package discord

import "github.com/bwmarrin/discordgo"

func targetsOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "targets",
		Description: "Menciones o IDs separados por espacios",
		Required:    true,
	}
}

func amountOption(desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "amount",
		Description: desc,
		Required:    true,
	}
}

func noteOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "note",
		Description: "Nota para el historial",
	}
}

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Comprueba que el bot responde",
	},
	{
		Name:        "help",
		Description: "Lista los comandos del bot",
	},

	// ---- banco ----
	{
		Name:        "bal",
		Description: "Muestra tu balance de plata",
	},
	{
		Name:        "pay",
		Description: "Transfiere plata de tu balance a otro jugador",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "to", Description: "Destinatario", Required: true},
			amountOption("Monto a transferir"),
		},
	},
	{
		Name:        "undo",
		Description: "Deshace tu última acción de banco (ventana de 15 min)",
	},
	{
		Name:        "bank_add",
		Description: "Suma un monto fijo a cada target (managers)",
		Options:     []*discordgo.ApplicationCommandOption{amountOption("Monto por jugador"), targetsOption(), noteOption()},
	},
	{
		Name:        "bank_remove",
		Description: "Resta un monto fijo a cada target (managers)",
		Options:     []*discordgo.ApplicationCommandOption{amountOption("Monto por jugador"), targetsOption(), noteOption()},
	},
	{
		Name:        "bank_add_split",
		Description: "Reparte un total entre los targets (managers)",
		Options:     []*discordgo.ApplicationCommandOption{amountOption("Total a repartir"), targetsOption(), noteOption()},
	},
	{
		Name:        "bank_remove_split",
		Description: "Descuenta un total repartido entre los targets (managers)",
		Options:     []*discordgo.ApplicationCommandOption{amountOption("Total a descontar"), targetsOption(), noteOption()},
	},

	// ---- composiciones ----
	{
		Name:        "comp_create",
		Description: "Crea un template de composición (managers)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Nombre único", Required: true},
			{
				Type: discordgo.ApplicationCommandOptionString, Name: "content", Description: "Tipo de contenido", Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Ava Raid", Value: "ava_raid"},
					{Name: "PvP", Value: "pvp"},
					{Name: "PvE", Value: "pve"},
				},
			},
			{Type: discordgo.ApplicationCommandOptionString, Name: "roles", Description: "Etiqueta;slots[;ip][;req=ID,ID] — una entrada por | ", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Descripción del template"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "required_roles", Description: "Roles de Discord requeridos para anotarse (IDs)"},
		},
	},
	{
		Name:        "comp_edit",
		Description: "Reemplaza los roles de un template existente (managers)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Nombre del template", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "content", Description: "Tipo de contenido", Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Ava Raid", Value: "ava_raid"},
					{Name: "PvP", Value: "pvp"},
					{Name: "PvE", Value: "pve"},
				},
			},
			{Type: discordgo.ApplicationCommandOptionString, Name: "roles", Description: "Definición nueva de roles", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Descripción nueva"},
		},
	},
	{
		Name:        "comp_delete",
		Description: "Borra un template (managers)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Nombre del template", Required: true},
		},
	},
	{
		Name:        "comp_list",
		Description: "Lista los templates de composición",
	},

	// ---- raids ----
	{
		Name:        "raid_open",
		Description: "Abre un raid con un template (managers)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "template", Description: "Template de composición", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Título del raid", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "start", Description: "Inicio YYYY-MM-DD HH:MM (hora París)", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Descripción"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "extra", Description: "Mensaje extra en el anuncio"},
			{Type: discordgo.ApplicationCommandOptionChannel, Name: "voice", Description: "Canal de voz del raid",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice}},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "prep_minutes", Description: "Minutos de prep antes del inicio"},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "cleanup_minutes", Description: "Minutos hasta el cierre automático"},
		},
	},
	{
		Name:        "raid_edit",
		Description: "Edita título/horario de un raid abierto (managers)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "raid", Description: "ID del raid", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Título nuevo"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "start", Description: "Inicio nuevo YYYY-MM-DD HH:MM"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Descripción nueva"},
		},
	},
	{
		Name:        "raid_close",
		Description: "Cierra un raid manualmente (managers)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "raid", Description: "ID del raid", Required: true},
		},
	},
	{
		Name:        "raid_list",
		Description: "Lista los raids activos",
	},

	// ---- loot ----
	{
		Name:        "loot_split",
		Description: "Calcula el reparto del botín de un raid (managers)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "raid", Description: "ID del raid", Required: true},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "chest", Description: "Valor bruto del cofre", Required: true},
			{Type: discordgo.ApplicationCommandOptionNumber, Name: "tax", Description: "Impuesto del cofre en % (default 0)"},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "bags", Description: "Plata suelta sin impuesto"},
			{Type: discordgo.ApplicationCommandOptionNumber, Name: "scout_pct", Description: "Porcentaje del scout"},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "scout_min", Description: "Piso del fee del scout"},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "scout_max", Description: "Techo del fee del scout"},
			{Type: discordgo.ApplicationCommandOptionNumber, Name: "rl_bonus", Description: "Bonus del raid leader en %"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "maps", Description: "Mapas: tier;precio;ok|cancel separados por |"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "players", Description: "Presentes (menciones/IDs); default: voice-check"},
		},
	},
	{
		Name:        "loot_scout_limits",
		Description: "Defaults del split para este server: fee del scout y bonus del RL (managers)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionNumber, Name: "scout_pct", Description: "Porcentaje del scout por defecto"},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "scout_min", Description: "Piso del fee del scout"},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "scout_max", Description: "Techo del fee del scout"},
			{Type: discordgo.ApplicationCommandOptionNumber, Name: "rl_bonus", Description: "Bonus del raid leader en %"},
		},
	},

	// ---- tickets ----
	{
		Name:        "ticket_setup",
		Description: "Configura el sistema de tickets del server (managers)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "mode", Description: "Tipo de room", Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Thread privado", Value: "private_thread"},
					{Name: "Canal privado", Value: "private_channel"},
				},
			},
			{Type: discordgo.ApplicationCommandOptionChannel, Name: "category", Description: "Categoría para canales privados",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory}},
			{Type: discordgo.ApplicationCommandOptionString, Name: "support_roles", Description: "Roles de soporte (IDs separados por espacios)"},
		},
	},
	{
		Name:        "ticket_open",
		Description: "Abre un ticket de soporte",
	},
	{
		Name:        "ticket_close",
		Description: "Cierra el ticket de este canal (managers)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "delete", Description: "Borrar el room en vez de archivarlo"},
		},
	},

	// ---- permisos ----
	{
		Name:        "perm_set",
		Description: "Define qué roles habilitan cada permiso del bot (admins)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "perm", Description: "Clave de permiso", Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Raid manager", Value: "raid_manager"},
					{Name: "Bank manager", Value: "bank_manager"},
					{Name: "Ticket manager", Value: "ticket_manager"},
				},
			},
			{Type: discordgo.ApplicationCommandOptionString, Name: "roles", Description: "IDs de roles separados por espacios", Required: true},
		},
	},
}
