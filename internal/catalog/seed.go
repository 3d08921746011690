package catalog

import "time"

// Builtin returns a catalog seeded with the compiled-in groups and
// template definitions the dashboard ships with. The compiled statuses
// are default hints only; display status is derived at read time.
func Builtin() *Catalog {
	c := New()

	seededAt := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	groups := []Group{
		{ID: "otp", Name: "OTP", Channel: ChannelMailing, Description: "One-time verification codes"},
		{ID: "security-alerts", Name: "Security alerts", Channel: ChannelMailing, Description: "Sign-in and device warnings"},
		{ID: "cash-movements", Name: "Cash movements", Channel: ChannelMailing, Description: "Deposit and withdrawal receipts"},
		{ID: "transaction-alerts", Name: "Transaction alerts", Channel: ChannelNotifications, Description: "Real-time card and transfer pushes"},
	}
	for _, g := range groups {
		if _, err := c.AddGroup(g); err != nil {
			panic("catalog: builtin group seed: " + err.Error())
		}
	}

	otpVars := []Variable{
		{Key: "safeName", Placeholder: "${safeName}", SampleValue: "María", Required: true},
		{Key: "code", Placeholder: "${code}", SampleValue: "482913", Required: true},
	}

	defs := []Definition{
		{
			ID:        "otp-login-code",
			GroupID:   "otp",
			Transport: TransportEmail,
			Status:    StatusActive,
			Name:      "Codigo de acceso",
			Subject:   "Tu código de verificación",
			Body: map[string]string{
				"en": "Hi ${safeName}, your verification code is ${code}. It expires in 10 minutes.",
				"es": "Hola ${safeName}, tu código de verificación es ${code}. Expira en 10 minutos.",
			},
			Variables: otpVars,
			Metrics:   Metrics{Sent: 182403, Opened: 170211},
			UpdatedAt: seededAt,
		},
		{
			ID:        "otp-login-code-short",
			GroupID:   "otp",
			Transport: TransportEmail,
			Status:    StatusInactive,
			Name:      "Codigo corto",
			Subject:   "Código: ${code}",
			Body: map[string]string{
				"en": "${safeName}: ${code}",
				"es": "${safeName}: ${code}",
			},
			Variables: otpVars,
			UpdatedAt: seededAt,
		},
		{
			ID:        "new-device-login",
			GroupID:   "security-alerts",
			Transport: TransportEmail,
			Status:    StatusActive,
			Name:      "Nuevo dispositivo",
			Subject:   "Inicio de sesión desde un dispositivo nuevo",
			Body: map[string]string{
				"en": "Hi ${safeName}, we noticed a sign-in from ${device} in ${city}. If this wasn't you, lock your account now.",
				"es": "Hola ${safeName}, detectamos un inicio de sesión desde ${device} en ${city}. Si no fuiste tú, bloquea tu cuenta.",
			},
			Variables: []Variable{
				{Key: "safeName", Placeholder: "${safeName}", SampleValue: "María", Required: true},
				{Key: "device", Placeholder: "${device}", SampleValue: "iPhone 15", Required: true},
				{Key: "city", Placeholder: "${city}", SampleValue: "Bogotá"},
			},
			Metrics:   Metrics{Sent: 40211, Opened: 35877, Clicked: 1204},
			UpdatedAt: seededAt,
		},
		{
			ID:        "password-changed",
			GroupID:   "security-alerts",
			Transport: TransportEmail,
			Status:    StatusDraft,
			Name:      "Contraseña actualizada",
			Subject:   "Tu contraseña cambió",
			Body: map[string]string{
				"en": "Hi ${safeName}, your password was changed on ${date}.",
				"es": "Hola ${safeName}, tu contraseña fue cambiada el ${date}.",
			},
			Variables: []Variable{
				{Key: "safeName", Placeholder: "${safeName}", SampleValue: "María", Required: true},
				{Key: "date", Placeholder: "${date}", SampleValue: "2025-11-01"},
			},
			UpdatedAt: seededAt,
		},
		{
			ID:        "cash-in-receipt",
			GroupID:   "cash-movements",
			Transport: TransportEmail,
			Status:    StatusActive,
			Name:      "Recibo Cash-in",
			Subject:   "Recibimos tu depósito",
			Body: map[string]string{
				"en": "Hi ${safeName}, we received your deposit of ${amount}. New balance: ${balance}.",
				"es": "Hola ${safeName}, recibimos tu depósito de ${amount}. Saldo nuevo: ${balance}.",
			},
			Variables: []Variable{
				{Key: "safeName", Placeholder: "${safeName}", SampleValue: "María", Required: true},
				{Key: "amount", Placeholder: "${amount}", SampleValue: "$1.250.000"},
				{Key: "balance", Placeholder: "${balance}", SampleValue: "$3.914.500"},
			},
			Metrics:   Metrics{Sent: 98412, Opened: 61240},
			UpdatedAt: seededAt,
		},
		{
			ID:        "card-purchase-push",
			GroupID:   "transaction-alerts",
			Transport: TransportPush,
			Status:    StatusActive,
			Name:      "Compra con tarjeta",
			Body: map[string]string{
				"en": "${merchant}: ${amount} charged to your card ending ${last4}",
				"es": "${merchant}: ${amount} cargado a tu tarjeta terminada en ${last4}",
			},
			Variables: []Variable{
				{Key: "merchant", Placeholder: "${merchant}", SampleValue: "Rappi", Required: true},
				{Key: "amount", Placeholder: "${amount}", SampleValue: "$54.900", Required: true},
				{Key: "last4", Placeholder: "${last4}", SampleValue: "4821"},
			},
			Metrics:   Metrics{Sent: 412094},
			UpdatedAt: seededAt,
		},
		{
			ID:        "transfer-received-push",
			GroupID:   "transaction-alerts",
			Transport: TransportPush,
			Status:    StatusInactive,
			Name:      "Transferencia recibida",
			Body: map[string]string{
				"en": "You received ${amount} from ${sender}",
				"es": "Recibiste ${amount} de ${sender}",
			},
			Variables: []Variable{
				{Key: "amount", Placeholder: "${amount}", SampleValue: "$200.000", Required: true},
				{Key: "sender", Placeholder: "${sender}", SampleValue: "Carlos P."},
			},
			UpdatedAt: seededAt,
		},
	}
	for _, d := range defs {
		if _, err := c.AddDefinition(d); err != nil {
			panic("catalog: builtin definition seed: " + err.Error())
		}
	}

	return c
}
