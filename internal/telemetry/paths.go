package telemetry

const (
	igdWAN  = "InternetGatewayDevice.WANDevice.1."
	igdPPP  = igdWAN + "WANConnectionDevice.1.WANPPPConnection.1."
	igdInfo = "InternetGatewayDevice.DeviceInfo."
	igdWLAN = "InternetGatewayDevice.LANDevice.1.WLANConfiguration."
)

// Candidate paths per logical field, most specific first.
var (
	RXPowerPaths = []string{
		"VirtualParameters.RXPower",
		"VirtualParameters.redaman",
		igdWAN + "WANPONInterfaceConfig.RXPower",
	}

	PPPoEIPPaths = []string{
		"VirtualParameters.pppoeIP",
		"VirtualParameters.pppIP",
		igdPPP + "ExternalIPAddress",
	}

	PPPUsernamePaths = []string{
		"VirtualParameters.pppoeUsername",
		"VirtualParameters.pppUsername",
		igdPPP + "Username",
	}

	UptimePaths = []string{
		"VirtualParameters.getdeviceuptime",
		igdInfo + "UpTime",
		"Device.DeviceInfo.UpTime",
	}

	UserConnectedPaths = []string{
		igdWLAN + "1.TotalAssociations",
	}

	TemperaturePaths = []string{
		"VirtualParameters.gettemp",
		igdInfo + "TemperatureStatus.1.Value",
	}

	SSIDPaths = []string{
		igdWLAN + "1.SSID",
		"Device.WiFi.SSID.1.SSID",
	}

	SSID5GPaths = []string{
		igdWLAN + "5.SSID",
		"Device.WiFi.SSID.5.SSID",
	}

	ConnectionTypePaths = []string{
		igdPPP + "ConnectionType",
	}

	DNSServerPaths = []string{
		"InternetGatewayDevice.LANDevice.1.LANHostConfigManagement.DNSServers",
	}

	SerialPaths = []string{
		igdInfo + "SerialNumber",
		"Device.DeviceInfo.SerialNumber",
		"VirtualParameters.getSerialNumber",
		"DeviceID.SerialNumber",
	}

	ModelPaths = []string{
		igdInfo + "ModelName",
		igdInfo + "ProductClass",
		"Device.DeviceInfo.ModelName",
		"DeviceID.ProductClass",
	}

	ManufacturerPaths = []string{
		igdInfo + "Manufacturer",
		igdInfo + "ManufacturerOUI",
		"Device.DeviceInfo.Manufacturer",
		"DeviceID.Manufacturer",
	}

	FirmwarePaths = []string{
		igdInfo + "SoftwareVersion",
		"Device.DeviceInfo.SoftwareVersion",
		igdInfo + "HardwareVersion",
	}
)
