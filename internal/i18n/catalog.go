package i18n

import "golang.org/x/text/language"

type bundle struct {
	tag      language.Tag
	messages map[string]string
}

var bundles = []bundle{
	{tag: language.Portuguese, messages: map[string]string{
		"Home":                                    "Início",
		"Networks":                                "Redes",
		"Browse Networks":                         "Navegar Redes",
		"Login":                                   "Entrar",
		"logout (%s)":                             "sair (%s)",
		"My Account":                              "A Minha Conta",
		"Administration":                          "Administração",
		"Dashboard":                               "Painel",
		"Profile":                                 "Perfil",
		"Manage":                                  "Gerir",
		"Options":                                 "Opções",
		"Groups":                                  "Grupos",
		"Users":                                   "Utilizadores",
		"Channels":                                "Canais",
		"Bots":                                    "Bots",
		"Basic":                                   "Básico",
		"Advanced":                                "Avançado",
		"Cache":                                   "Cache",
		"Error:":                                  "Erro:",
		"Warning:":                                "Aviso:",
		"Welcome back %s!":                        "Bem-vindo de volta %s!",
		"You're already signed in.":               "Já tem sessão iniciada.",
		"You've been successfully logged out.":    "Terminou a sessão com sucesso.",
		"Configuration altered successfully.":     "Configuração alterada com sucesso.",
		"Your account has been successfully activated!": "A sua conta foi ativada com sucesso!",
		"Page Not Found":                          "Página Não Encontrada",
		"Forbidden":                               "Proibido",
		"Internal Server Error":                   "Erro Interno do Servidor",
		"Maintenance Mode":                        "Modo de Manutenção",
	}},
}

// commonTimezones is the selectable subset of the tz database.
var commonTimezones = []string{
	"UTC",
	"Africa/Cairo", "Africa/Johannesburg", "Africa/Lagos", "Africa/Nairobi",
	"America/Anchorage", "America/Argentina/Buenos_Aires", "America/Bogota", "America/Chicago",
	"America/Denver", "America/Halifax", "America/Los_Angeles", "America/Mexico_City",
	"America/New_York", "America/Phoenix", "America/Santiago", "America/Sao_Paulo",
	"America/St_Johns", "America/Toronto", "America/Vancouver",
	"Asia/Bangkok", "Asia/Dhaka", "Asia/Dubai", "Asia/Hong_Kong", "Asia/Jakarta",
	"Asia/Jerusalem", "Asia/Karachi", "Asia/Kathmandu", "Asia/Kolkata", "Asia/Manila",
	"Asia/Seoul", "Asia/Shanghai", "Asia/Singapore", "Asia/Taipei", "Asia/Tehran", "Asia/Tokyo",
	"Atlantic/Azores", "Atlantic/Reykjavik",
	"Australia/Adelaide", "Australia/Brisbane", "Australia/Perth", "Australia/Sydney",
	"Europe/Amsterdam", "Europe/Athens", "Europe/Berlin", "Europe/Brussels", "Europe/Dublin",
	"Europe/Helsinki", "Europe/Istanbul", "Europe/Lisbon", "Europe/London", "Europe/Madrid",
	"Europe/Moscow", "Europe/Paris", "Europe/Prague", "Europe/Rome", "Europe/Stockholm",
	"Europe/Warsaw", "Europe/Zurich",
	"Pacific/Auckland", "Pacific/Honolulu",
}
